package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Debug    bool
	TestMode bool
	AppName  string
	Env      string
	WorkDir  string

	SecretKey          string
	JWTExpirationDelta time.Duration

	// email domain enforced on login/import in production only
	AllowedEmailDomain string

	CORSAllowedOrigins []string

	Server struct {
		Addr            string
		ShutdownTimeout time.Duration
	}

	Database struct {
		URL  string
		Name string
	}

	SMTP struct {
		Host     string
		Port     int
		User     string
		Password string
		From     string
	}
	DefaultFromName string
	SendgridAPIKey  string

	RollbarToken string
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

func (c *Config) DefaultFromEmail() mail.Address {
	addr := c.SMTP.From
	if addr == "" {
		addr = c.SMTP.User
	}
	if addr == "" {
		addr = "noreply@localhost"
	}
	return mail.Address{Name: c.DefaultFromName, Address: addr}
}

// NewConfig loads the configuration from an optional `.env` file and the
// environment, on top of sane defaults.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Registro Escolar")
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("secretKey", "your-secret-key-change-this-in-production")
	v.SetDefault("jwtExpirationDelta", 365*24*time.Hour) // sessions are effectively permanent
	v.SetDefault("allowedEmailDomain", "@redland.cl")
	v.SetDefault("corsOrigins", "*")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("mongoUrl", "mongodb://localhost:27017")
	v.SetDefault("dbName", "registro_escolar_db")
	v.SetDefault("smtpServer", "smtp.gmail.com")
	v.SetDefault("smtpPort", 587)
	v.SetDefault("smtpUser", "")
	v.SetDefault("smtpPassword", "")
	v.SetDefault("smtpFrom", "")
	v.SetDefault("defaultFromName", "Registro Escolar")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), ".env")
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	_ = v.BindEnv("debug", "DEBUG")
	_ = v.BindEnv("env", "ENVIRONMENT")
	_ = v.BindEnv("secretKey", "SECRET_KEY")
	_ = v.BindEnv("corsOrigins", "CORS_ORIGINS")
	_ = v.BindEnv("serverAddr", "SERVER_ADDR")
	_ = v.BindEnv("mongoUrl", "MONGO_URL")
	_ = v.BindEnv("dbName", "DB_NAME")
	_ = v.BindEnv("smtpServer", "SMTP_SERVER")
	_ = v.BindEnv("smtpPort", "SMTP_PORT")
	_ = v.BindEnv("smtpUser", "SMTP_USER")
	_ = v.BindEnv("smtpPassword", "SMTP_PASSWORD")
	_ = v.BindEnv("smtpFrom", "SMTP_FROM")
	_ = v.BindEnv("sendgridApiKey", "SENDGRID_API_KEY")
	_ = v.BindEnv("rollbarToken", "ROLLBAR_TOKEN")
	v.AutomaticEnv()

	conf := &Config{
		Debug:              v.GetBool("debug"),
		AppName:            v.GetString("appName"),
		Env:                strings.ToLower(v.GetString("env")),
		WorkDir:            Getwd(),
		SecretKey:          v.GetString("secretKey"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		AllowedEmailDomain: strings.ToLower(v.GetString("allowedEmailDomain")),
		CORSAllowedOrigins: splitAndTrim(v.GetString("corsOrigins")),
		DefaultFromName:    v.GetString("defaultFromName"),
		SendgridAPIKey:     v.GetString("sendgridApiKey"),
		RollbarToken:       v.GetString("rollbarToken"),
	}
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.ShutdownTimeout = v.GetDuration("shutdownTimeout")
	conf.Database.URL = v.GetString("mongoUrl")
	conf.Database.Name = v.GetString("dbName")
	conf.SMTP.Host = v.GetString("smtpServer")
	conf.SMTP.Port = v.GetInt("smtpPort")
	conf.SMTP.User = v.GetString("smtpUser")
	conf.SMTP.Password = v.GetString("smtpPassword")
	conf.SMTP.From = v.GetString("smtpFrom")

	if conf.Production() {
		conf.Debug = false
	}
	if strings.HasSuffix(os.Args[0], ".test") {
		conf.TestMode = true
	}
	return conf
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
