package main

import (
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	baseURL := os.Getenv("WATCH_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	m := newModel(newAPIClient(baseURL))
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("watch: %v", err)
	}
}
