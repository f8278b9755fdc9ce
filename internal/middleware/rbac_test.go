package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

func rbacRouter(claims *models.AccessClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/students/:studentId/report",
		func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextUserKey, claims)
			}
		},
		RequireRole(allowed...),
		func(c *gin.Context) { c.Status(http.StatusNoContent) },
	)
	return router
}

func rbacRequest(t *testing.T, router *gin.Engine, path string) int {
	t.Helper()
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(recorder, req)
	return recorder.Code
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	router := rbacRouter(&models.AccessClaims{UserID: "u1", Role: "TEACHER"}, "ADMIN", "TEACHER")
	assert.Equal(t, http.StatusNoContent, rbacRequest(t, router, "/students/stu-1/report"))
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	router := rbacRouter(&models.AccessClaims{UserID: "u1", Role: "STUDENT"}, "ADMIN", "TEACHER")
	assert.Equal(t, http.StatusForbidden, rbacRequest(t, router, "/students/stu-1/report"))
}

func TestRequireRoleSelfMatchesPathParam(t *testing.T) {
	router := rbacRouter(&models.AccessClaims{UserID: "stu-1", Role: "STUDENT"}, "ADMIN", "TEACHER", "SELF")
	assert.Equal(t, http.StatusNoContent, rbacRequest(t, router, "/students/stu-1/report"))
	assert.Equal(t, http.StatusForbidden, rbacRequest(t, router, "/students/stu-2/report"))
}

func TestRequireRoleMissingClaims(t *testing.T) {
	router := rbacRouter(nil, "ADMIN")
	assert.Equal(t, http.StatusUnauthorized, rbacRequest(t, router, "/students/stu-1/report"))
}
