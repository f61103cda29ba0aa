package request

// Body is a raw request body, it's decoded as is.
type Body []byte
