package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/secnexus/internal/buildinfo"
	"github.com/dmitrijs2005/secnexus/internal/server"
	"github.com/dmitrijs2005/secnexus/internal/server/auth"
	"github.com/dmitrijs2005/secnexus/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stderr)

	// provisioner hash-password < secret.txt
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}

func hashPassword() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	h, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	fmt.Println(h)
	return nil
}
