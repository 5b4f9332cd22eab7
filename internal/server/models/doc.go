// Package models holds the server's domain types and wire DTOs.
package models
