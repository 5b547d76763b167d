package banner

import (
	"fmt"

	"contextdb/pkg/config"
)

const banner = `
 ██████╗ ██████╗ ███╗   ██╗████████╗███████╗██╗  ██╗████████╗██████╗ ██████╗
██╔════╝██╔═══██╗████╗  ██║╚══██╔══╝██╔════╝╚██╗██╔╝╚══██╔══╝██╔══██╗██╔══██╗
██║     ██║   ██║██╔██╗ ██║   ██║   █████╗   ╚███╔╝    ██║   ██║  ██║██████╔╝
██║     ██║   ██║██║╚██╗██║   ██║   ██╔══╝   ██╔██╗    ██║   ██║  ██║██╔══██╗
╚██████╗╚██████╔╝██║ ╚████║   ██║   ███████╗██╔╝ ██╗   ██║   ██████╔╝██████╔╝
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝   ╚═╝   ╚══════╝╚═╝  ╚═╝   ╚═╝   ╚═════╝ ╚═════╝
`

// Print prints the startup banner with effective config details.
func Print(eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", eff.Addr)
	fmt.Printf("Backend:   %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case "file":
		fmt.Printf("Data root: %s\n", cfg.Storage.DataRoot)
	case "pebble":
		fmt.Printf("DB path:   %s\n", cfg.Storage.PebblePath)
	case "postgres":
		fmt.Println("DSN:       (configured)")
	}
	fmt.Printf("Scoped:    %v\n", cfg.EffectiveRequirePrincipal())
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config sources: %s\n", eff.Source)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET    /context?chatId=<id>            - fetch the conversation log")
	fmt.Println("POST   /context?chatId=<id>            - append a message")
	fmt.Println("PUT    /context?chatId=<id>            - replace the log with a JSONL upload")
	fmt.Println("DELETE /context?chatId=<id>            - delete the log (or one message via &messageId=)")
	fmt.Println("GET    /context/download?chatId=<id>   - download the log as <id>.jsonl")
}
