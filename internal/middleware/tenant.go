package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const tenantIDKey = "tenant_id"

// TenantMiddleware resolves the current tenant from the X-Tenant-ID
// header. Tenant resolution happens only at the HTTP edge; services
// take the tenant id as an explicit parameter.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-Tenant-ID")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing tenant"})
			return
		}

		tenantID, err := uuid.Parse(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
			return
		}

		c.Set(tenantIDKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant id resolved by TenantMiddleware
func TenantID(c *gin.Context) uuid.UUID {
	value, exists := c.Get(tenantIDKey)
	if !exists {
		return uuid.Nil
	}
	tenantID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return tenantID
}
