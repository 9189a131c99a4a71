package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"heron/internal/auth"
	"heron/internal/blobstore"
	"heron/internal/conf"
	"heron/internal/imap"
	"heron/internal/smtp"
	"heron/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	log.Println("Starting Heron mail server...")

	cfg, err := conf.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config: %v", err)
		log.Println("Using default configuration")
		cfg = conf.DefaultConfig()
	}

	st, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	log.Printf("Database opened: %s", cfg.DatabasePath)

	var blobs *blobstore.S3Store
	if cfg.BlobStorage.Enabled {
		log.Println("Initializing S3 blob storage...")
		blobs, err = blobstore.NewS3Store(cfg.BlobStorage)
		if err != nil {
			log.Printf("Warning: Failed to initialize S3 blob storage: %v", err)
			log.Println("Attachment payloads will not be stored")
			blobs = nil
		} else {
			log.Printf("S3 blob storage initialized: %s (bucket: %s)", cfg.BlobStorage.Endpoint, cfg.BlobStorage.Bucket)
		}
	} else {
		log.Println("S3 blob storage is disabled in config")
	}

	var tokens *auth.TokenIssuer
	if cfg.RelayTokenSecret != "" {
		tokens, err = auth.NewTokenIssuer(cfg.RelayTokenSecret)
		if err != nil {
			log.Fatal("Failed to initialize relay token issuer:", err)
		}
		log.Println("Relay token authentication enabled")
	}

	imapServer := imap.NewServer(cfg, st)
	smtpServer := smtp.NewServer(cfg, st, blobs, tokens)

	var g errgroup.Group
	g.Go(imapServer.Start)
	g.Go(smtpServer.Start)

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		log.Printf("Received signal %v, shutting down...", sig)
		imapServer.Stop()
		smtpServer.Stop()
	}()

	if err := g.Wait(); err != nil {
		log.Fatal("Server error:", err)
	}

	log.Println("Heron mail server stopped")
}
