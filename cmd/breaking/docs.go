package main

//go:generate swag init -g cmd/breaking/main.go -o docs

// @title           Palpiteiros Breaking Markets API
// @version         0.1.0
// @description     Breaking prediction markets, market sync, and the newsletter digest.
// @host            localhost:8080
// @BasePath        /
// @schemes         http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
