package api

import (
	"net/http"
	"strings"

	"github.com/bippity/Invincible-Tiles/internal/auth"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/gin-gonic/gin"
)

const (
	claimsKey = "claims"
	actorKey  = "actor"
)

// jwtMiddleware проверяет JWT токен в заголовке Authorization
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Отсутствует токен авторизации",
			})
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Неверный формат токена",
			})
			return
		}

		claims, err := rs.issuer.ValidateJWT(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительный токен",
			})
			return
		}

		// Владелец токена действует в хосте как игрок со своими правами
		c.Set(claimsKey, claims)
		c.Set(actorKey, host.NewActor(claims.Username, host.NewGroup("rest", claims.Permissions...)))
		c.Next()
	}
}

// requirePermission пропускает только владельцев токена с правом perm
func (rs *RestServer) requirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(claimsKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, GenericResponse{
				Success: false,
				Message: "Отсутствует информация о пользователе",
			})
			return
		}

		if !v.(*auth.Claims).HasPermission(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{
				Success: false,
				Message: "Недостаточно прав доступа",
			})
			return
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) *host.Actor {
	return c.MustGet(actorKey).(*host.Actor)
}
