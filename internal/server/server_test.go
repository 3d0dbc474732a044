package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"farmtrace/internal/config"
)

func TestSwaggerURL(t *testing.T) {
	tests := []struct {
		cfg  config.Server
		want string
	}{
		{config.Server{Port: "8080"}, "http://localhost:8080/swagger/index.html"},
		{config.Server{Port: "8080", SwaggerHost: "api.example.com"}, "http://api.example.com/swagger/index.html"},
		{config.Server{Port: "8080", SwaggerHost: "https://api.example.com"}, "https://api.example.com/swagger/index.html"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, swaggerURL(tt.cfg))
	}
}
