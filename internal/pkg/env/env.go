package env

import (
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// Env holds the values loaded from the .env file, if one was found.
var Env map[string]string

// GetEnv resolves a configuration value: .env file first, then the OS
// environment, then the given default.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the nearest .env file. Containerized deployments
// configure through OS environment variables instead, so a missing file is
// not fatal.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",
		"../../../.env",
	}

	for _, envFile := range envFiles {
		values, err := godotenv.Read(envFile)
		if err != nil {
			continue
		}
		Env = values
		return
	}

	Env = map[string]string{}
	log.Info("[Env] No .env file found, using OS environment variables only")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
