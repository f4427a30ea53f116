package config

import (
	"os"

	"github.com/joho/godotenv"
)

func LoadFromEnv() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, err
		}
	}
	return Load(FromEnviron())
}
