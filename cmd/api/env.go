package main

import (
	"os"
	"strings"
)

func envHost() string         { return strings.TrimSpace(os.Getenv("HOST")) }
func envPort() string         { return strings.TrimSpace(os.Getenv("PORT")) }
func envPersonasFile() string { return strings.TrimSpace(os.Getenv("PERSONAS_FILE")) }
