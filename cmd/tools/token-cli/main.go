package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/auth"
	"github.com/bippity/Invincible-Tiles/internal/config"
)

// token-cli выпускает JWT для REST API и готовит значения для конфигурации:
//
//	token-cli -config server.yaml -user admin -perms admin,blackTile
//	token-cli -hash 'S3cret!'      # bcrypt для auth.users[].password_hash
//	token-cli -gen-secret          # значение для auth.jwt_secret
func main() {
	var (
		configPath = flag.String("config", "", "YAML конфигурация сервера (секрет и TTL)")
		secret     = flag.String("secret", "", "base64 секрет, переопределяет конфигурацию")
		user       = flag.String("user", "admin", "имя пользователя в токене")
		perms      = flag.String("perms", "admin", "права через запятую (* = все)")
		ttl        = flag.Duration("ttl", 0, "время жизни токена (по умолчанию из конфигурации)")
		hash       = flag.String("hash", "", "вывести bcrypt хеш пароля и выйти")
		genSecret  = flag.Bool("gen-secret", false, "сгенерировать секрет и выйти")
	)
	flag.Parse()

	if *hash != "" {
		h, err := auth.HashPassword(*hash)
		if err != nil {
			log.Fatalf("❌ bcrypt: %v", err)
		}
		fmt.Println(h)
		return
	}

	if *genSecret {
		s, err := auth.GenerateSecureSecret()
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Println(s)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *secret != "" {
		cfg.Auth.JWTSecret = *secret
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatalf("❌ Секрет не задан: укажите -secret, auth.jwt_secret или INVINCIBLE_JWT_SECRET")
	}
	lifetime := *ttl
	if lifetime == 0 {
		lifetime = time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, lifetime)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	token, err := issuer.GenerateJWT(*user, splitPerms(*perms))
	if err != nil {
		log.Fatalf("❌ Ошибка генерации токена: %v", err)
	}
	fmt.Println(token)
}

func splitPerms(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
