package main

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	// ChatPathPrefix is the fixed WebSocket endpoint.
	ChatPathPrefix string `env:"CHAT_PATH_PREFIX,default=/ws/chat"`

	// Token verification: a secret selects HS256, a public key file selects
	// RS256; with neither set, tokens are resolved through IdentityURL.
	JWTSecret        string `env:"JWT_SECRET"`
	JWTPublicKeyFile string `env:"JWT_PUBLIC_KEY_FILE"`
	ServiceOrigin    string `env:"SERVICE_ORIGIN"`
	IdentityURL      string `env:"IDENTITY_URL"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
}
