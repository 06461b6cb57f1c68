package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func parseQueryUint(c *fiber.Ctx, key string) *uint {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil
	}
	result := uint(parsed)
	return &result
}

func queryString(c *fiber.Ctx, key string) *string {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	return &value
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func tenantFromContext(c *fiber.Ctx) string {
	if v := c.Locals("tenant_id"); v != nil {
		if tenant, ok := v.(string); ok {
			return tenant
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) string {
	role := "user"
	if v := c.Locals("user_role"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			role = s
		}
	}
	return role + ":" + strconv.FormatUint(uint64(userIDFromContext(c)), 10)
}
