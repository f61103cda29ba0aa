package main

import (
	"github.com/joho/godotenv"
	app "github.com/platformplatform/account-api/pkg/api"
)

func main() {
	_ = godotenv.Load() // .env is optional outside of development

	a := app.NewApp()
	a.RunForever()
}
