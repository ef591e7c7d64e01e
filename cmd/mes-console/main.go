package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/console"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", config.GetEnvOrDefault("MES_SERVER", "http://localhost:8082"), "nimo-mes base URL")
	token := flag.String("token", config.GetEnvOrDefault("MES_TOKEN", ""), "bearer token issued by nimo-plm")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a token is required (-token or MES_TOKEN)")
		os.Exit(2)
	}

	p := tea.NewProgram(
		console.NewModel(console.NewClient(*server, *token)),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running console: %v\n", err)
		os.Exit(1)
	}
}
