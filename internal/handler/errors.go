package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/Baaaki/car-rental/internal/middleware"
	"github.com/Baaaki/car-rental/internal/service"
	"github.com/Baaaki/car-rental/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// errorStatus maps service sentinels to HTTP status codes. Order matters:
// the first sentinel found in the chain wins.
var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrUnauthenticated, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusBadRequest},
	{service.ErrInvalidOTP, http.StatusBadRequest},
	{service.ErrDependencyFailure, http.StatusBadGateway},
}

// RegisterValidation makes gin's validator report fields by their json (or
// form) tag so binding errors line up with service validation errors.
func RegisterValidation() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// respondError writes the response for a failed service call.
func respondError(c *gin.Context, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"errors": ve.Fields,
		})
		return
	}

	for _, m := range errorStatus {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status == http.StatusBadGateway {
			requestLog(c).Error("Dependency failure", zap.Error(err))
			c.JSON(m.status, gin.H{"error": "Failed to send email. Please try again later."})
			return
		}
		c.JSON(m.status, gin.H{"error": publicMessage(err, m.err)})
		return
	}

	requestLog(c).Error("Unhandled service error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// respondBindError reports a request that could not be bound. Validator
// failures become field messages, anything else is a malformed body.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"errors": fields,
		})
		return
	}

	requestLog(c).Warn("Request parsing failed",
		zap.String("ip", c.ClientIP()),
		zap.Error(err),
	)
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}

func fieldMessage(fe validator.FieldError) string {
	name := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", name)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s must be at least %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s.", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s may not be greater than %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s.", name, fe.Param())
	case "len":
		return fmt.Sprintf("The %s must be %s characters.", name, fe.Param())
	case "numeric":
		return fmt.Sprintf("The %s must be a number.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "eqfield":
		return fmt.Sprintf("The %s does not match.", name)
	}
	return fmt.Sprintf("The %s is invalid.", name)
}

// publicMessage strips the sentinel prefix from a wrapped error so that only
// the human readable detail reaches the client.
func publicMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		msg = msg[i+len(prefix):]
	}
	msg = strings.ReplaceAll(msg, "\n", "; ")

	r := []rune(msg)
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func requestLog(c *gin.Context) *zap.Logger {
	return logger.WithRequest(c.GetString(middleware.ContextRequestID))
}

// currentActor returns the authenticated caller. It aborts with 401 when the
// route was mounted without AuthMiddleware.
func currentActor(c *gin.Context) (service.Actor, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated."})
		return service.Actor{}, false
	}
	return service.ActorOf(user), true
}

// pathID parses the :id route parameter. A non numeric id is answered with 404.
func pathID(c *gin.Context, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
		return 0, false
	}
	return uint(id), true
}
