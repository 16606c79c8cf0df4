package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWrapErrorDefaultsToInternal(t *testing.T) {
	cause := errors.New("db down")
	appErr := WrapError(CodeOK, "服务繁忙", cause)
	if appErr.Code != CodeInternal {
		t.Fatalf("expected internal code, got %d", appErr.Code)
	}
	if !errors.Is(appErr, cause) {
		t.Fatalf("expected wrapped cause")
	}
	if appErr.Error() != "服务繁忙: db down" {
		t.Fatalf("unexpected message: %s", appErr.Error())
	}
}

func TestErrorWithDataAttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-9")

	ErrorWithData(c, CodeBadRequest, "邀请码无效", gin.H{"success": false})

	if w.Code != http.StatusOK {
		t.Fatalf("http status should stay 200, got %d", w.Code)
	}
	var resp struct {
		StatusCode int                    `json:"status_code"`
		Data       map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.StatusCode != CodeBadRequest || resp.Data["request_id"] != "req-9" || resp.Data["success"] != false {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
