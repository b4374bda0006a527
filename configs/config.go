package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	PostgresURI string
	FrontendURL string

	// Base64-encoded 32-byte key used to encrypt platform credentials at rest.
	EncryptionKey string

	// JWT signing secret for the API surface.
	SecretKey  string
	CookieName string

	GitlabClientID     string
	GitlabClientSecret string
	GiteaClientID      string
	GiteaClientSecret  string

	R2 R2
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		EncryptionKey:      getEnv("ENCRYPTION_KEY", ""),
		SecretKey:          getEnv("SECRET_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", "contribsync_session"),
		GitlabClientID:     getEnv("GITLAB_CLIENT_ID", ""),
		GitlabClientSecret: getEnv("GITLAB_CLIENT_SECRET", ""),
		GiteaClientID:      getEnv("GITEA_CLIENT_ID", ""),
		GiteaClientSecret:  getEnv("GITEA_CLIENT_SECRET", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
