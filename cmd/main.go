package main

import (
	"fmt"
	"os"

	"github.com/autovant/RCA-Final-sub001/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Start()

	application.Log.Info("Listening...", "port", application.Cfg.Port)
	if err := application.Run(); err != nil {
		application.Log.Error("Server exited", "error", err)
	}
}
