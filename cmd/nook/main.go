package main

import (
	"nook/cmd/handlers"
	"nook/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
