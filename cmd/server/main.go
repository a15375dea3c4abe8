package main

import (
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/himanishpuri/PerfectPitch/internal/dataset"
	"github.com/himanishpuri/PerfectPitch/internal/storage"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
	"github.com/joho/godotenv"
)

var (
	port           int
	dbPath         string
	sampleRate     int
	hopLength      int
	augment        bool
	seed           uint64
	allowedOrigins string
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults")
	}

	defaults := perfectpitch.Default()
	flag.IntVar(&port, "port", getEnvInt("PERFECTPITCH_PORT", 8080), "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PERFECTPITCH_DB_PATH", "perfectpitch.sqlite3"), "Path to the SQLite example store")
	flag.IntVar(&sampleRate, "rate", getEnvInt("PERFECTPITCH_SAMPLE_RATE", defaults.SampleRate), "Pipeline sample rate in Hz")
	flag.IntVar(&hopLength, "hop", getEnvInt("PERFECTPITCH_HOP_LENGTH", defaults.HopLength), "Frame hop in samples")
	flag.BoolVar(&augment, "augment", false, "Serve augmented piano-rolls")
	flag.Uint64Var(&seed, "seed", 0, "Seed for --augment")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	cfg, err := perfectpitch.New(
		perfectpitch.WithSampleRate(sampleRate),
		perfectpitch.WithHopLength(hopLength),
	)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	var opts []dataset.Option
	if augment {
		opts = append(opts, dataset.WithAugmentation(rand.New(rand.NewPCG(seed, seed))))
	}
	store, err := dataset.New(db, cfg, opts...)
	if err != nil {
		db.Close()
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer store.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		Pipeline:       cfg,
		Augment:        augment,
		AllowedOrigins: origins,
	}

	server := NewServer(store, db, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
