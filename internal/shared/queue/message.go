package queue

// Message is serialized to json before it's put to a queue.
// Messages with equal LockID are never consumed concurrently.
type Message interface {
	LockID() string
}
