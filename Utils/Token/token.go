package Token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	secret            = []byte("change-me")
	tokenHourLifespan = 24
)

var ErrMissingToken = errors.New("Token not provided")

func Setup(apiSecret string, hours int) {
	if apiSecret != "" {
		secret = []byte(apiSecret)
	}
	if hours > 0 {
		tokenHourLifespan = hours
	}
}

func GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{}
	claims["authorized"] = true
	claims["user_id"] = userID
	claims["exp"] = time.Now().Add(time.Hour * time.Duration(tokenHourLifespan)).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(secret)
}

func TokenValid(c *gin.Context) error {
	_, err := ExtractJWT(c)
	return err
}

// ExtractToken reads the bearer token from the Authorization header or the token query parameter.
func ExtractToken(c *gin.Context) string {
	token := c.Query("token")
	if token != "" {
		return token
	}
	bearerToken := c.Request.Header.Get("Authorization")
	if parts := strings.Split(bearerToken, " "); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func ExtractJWT(c *gin.Context) (*jwt.Token, error) {
	tokenString := ExtractToken(c)
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	return parse(tokenString)
}

func ExtractTokenID(c *gin.Context) (uint, error) {
	token, err := ExtractJWT(c)
	if err != nil {
		return 0, err
	}
	return userIDFromClaims(token)
}

func parse(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
}

func userIDFromClaims(token *jwt.Token) (uint, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("Invalid token claims")
	}
	uid, err := strconv.ParseUint(fmt.Sprintf("%.0f", claims["user_id"]), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(uid), nil
}
