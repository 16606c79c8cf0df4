package admin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/invite-center/internal/config"
	"github.com/invite-center/internal/constants"
	"github.com/invite-center/internal/models"
	"github.com/invite-center/internal/provider"
	"github.com/invite-center/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type adminTestResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupAdminInviteHandlerTest(t *testing.T) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_invite_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := config.Default()
	cfg.Invite.MaxTreeDepth = 3
	container, err := provider.Build(cfg, db, nil)
	if err != nil {
		t.Fatalf("build container failed: %v", err)
	}

	h := New(container)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("admin_id", uint(9))
		c.Set("admin_name", "ops")
		c.Next()
	})
	r.GET("/permissions", h.GetMyInvitePermissions)
	r.GET("/reward-config", h.GetInviteRewardConfig)
	r.PUT("/reward-config", h.UpdateInviteRewardConfig)
	r.GET("/reward-config/history", h.ListInviteRewardConfigHistory)
	r.GET("/reward-config/versions/:version", h.GetInviteRewardConfigVersion)
	r.GET("/leaderboard", h.GetInviteLeaderboard)
	r.GET("/leaderboard/export", h.ExportInviteLeaderboard)
	r.GET("/users/:user_id/tree", h.GetInviteTree)
	r.GET("/users/:user_id/chain-depth", h.GetInviteChainDepth)
	r.GET("/users/:user_id/gold-transactions", h.ListUserGoldTransactions)
	return h, r
}

func doAdminRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) adminTestResponse {
	t.Helper()

	var raw []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		raw = encoded
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected http 200, got %d", w.Code)
	}
	var resp adminTestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v, body=%s", err, w.Body.String())
	}
	return resp
}

// seedInviteChain root -> mid -> leaf，另有 root -> side
func seedInviteChain(t *testing.T, h *Handler) {
	t.Helper()

	ctx := context.Background()
	accept := func(inviter, invitee string) {
		stats, err := h.InviteService.IssueOrFetchInviteCode(ctx, inviter)
		if err != nil {
			t.Fatalf("issue code for %s failed: %v", inviter, err)
		}
		if err := h.InviteService.AcceptInvite(ctx, invitee, stats.InviteCode); err != nil {
			t.Fatalf("accept %s -> %s failed: %v", inviter, invitee, err)
		}
	}
	accept("root", "mid")
	accept("root", "side")
	accept("mid", "leaf")
}

func TestInviteRewardConfigHandlers(t *testing.T) {
	_, r := setupAdminInviteHandlerTest(t)

	initial := doAdminRequest(t, r, http.MethodGet, "/reward-config", nil)
	if initial.StatusCode != 0 {
		t.Fatalf("get config failed: %d %s", initial.StatusCode, initial.Msg)
	}
	var current InviteRewardConfigResponse
	if err := json.Unmarshal(initial.Data, &current); err != nil {
		t.Fatalf("unmarshal config failed: %v", err)
	}
	if current.Version != 1 || current.Config.RegisterReward != 100 {
		t.Fatalf("unexpected initial config: %+v", current)
	}

	updated := doAdminRequest(t, r, http.MethodPut, "/reward-config", gin.H{
		"config": gin.H{
			"register_reward":         150,
			"register_reward_inviter": 250.7,
			"first_charge_rate":       120,
			"level10_reward":          -5,
			"level20_reward":          1000,
			"level30_reward":          2000,
		},
		"comment": "春节活动",
	})
	if updated.StatusCode != 0 {
		t.Fatalf("update config failed: %d %s", updated.StatusCode, updated.Msg)
	}
	var result struct {
		Success bool   `json:"success"`
		Version int64  `json:"version"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(updated.Data, &result); err != nil {
		t.Fatalf("unmarshal update result failed: %v", err)
	}
	if !result.Success || result.Version != 2 || result.Status != "active" {
		t.Fatalf("unexpected update result: %+v", result)
	}

	reloaded := doAdminRequest(t, r, http.MethodGet, "/reward-config", nil)
	if err := json.Unmarshal(reloaded.Data, &current); err != nil {
		t.Fatalf("unmarshal config failed: %v", err)
	}
	if current.Version != 2 || current.UpdatedBy != "ops" || current.Comment != "春节活动" {
		t.Fatalf("unexpected reloaded config: %+v", current)
	}
	if current.Config.RegisterRewardInviter != 250 || current.Config.FirstChargeRate != 100 || current.Config.Level10Reward != 0 {
		t.Fatalf("expected clamped config, got %+v", current.Config)
	}

	history := doAdminRequest(t, r, http.MethodGet, "/reward-config/history?page=1&page_size=10", nil)
	var page struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(history.Data, &page); err != nil {
		t.Fatalf("unmarshal history failed: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 history rows, got %d", page.Total)
	}
}

func TestGetInviteRewardConfigVersion(t *testing.T) {
	_, r := setupAdminInviteHandlerTest(t)

	pending := doAdminRequest(t, r, http.MethodPut, "/reward-config", gin.H{
		"config":        gin.H{"register_reward": 77},
		"review_status": "pending",
	})
	if pending.StatusCode != 0 {
		t.Fatalf("pending update failed: %d %s", pending.StatusCode, pending.Msg)
	}

	resp := doAdminRequest(t, r, http.MethodGet, "/reward-config/versions/2", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("get version failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var data struct {
		Record InviteRewardConfigResponse `json:"record"`
		Status string                     `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal version failed: %v", err)
	}
	if data.Record.Version != 2 || data.Record.Config.RegisterReward != 77 || data.Status != constants.InviteConfigStatusPending {
		t.Fatalf("unexpected version payload: %+v", data)
	}

	if missing := doAdminRequest(t, r, http.MethodGet, "/reward-config/versions/42", nil); missing.StatusCode != 404 {
		t.Fatalf("expected 404 for unknown version, got %d", missing.StatusCode)
	}
	if bad := doAdminRequest(t, r, http.MethodGet, "/reward-config/versions/abc", nil); bad.StatusCode != 400 {
		t.Fatalf("expected 400 for malformed version, got %d", bad.StatusCode)
	}
}

func TestUpdateInviteRewardConfigRejectsUnknownReviewStatus(t *testing.T) {
	_, r := setupAdminInviteHandlerTest(t)

	resp := doAdminRequest(t, r, http.MethodPut, "/reward-config", gin.H{
		"config":        gin.H{"register_reward": 1},
		"review_status": "maybe",
	})
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for unknown review status, got %d", resp.StatusCode)
	}
}

func TestInviteLeaderboardHandlers(t *testing.T) {
	h, r := setupAdminInviteHandlerTest(t)
	seedInviteChain(t, h)

	resp := doAdminRequest(t, r, http.MethodGet, "/leaderboard?page=1&page_size=10", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("get leaderboard failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var report service.InviteLeaderboardReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		t.Fatalf("unmarshal report failed: %v", err)
	}
	if len(report.List) == 0 || report.List[0].UserID != "root" || report.List[0].Rank != 1 || report.List[0].TotalInvites != 2 {
		t.Fatalf("unexpected leaderboard head: %+v", report.List)
	}
	if report.Summary.TotalInvites != 3 || report.ConfigVersion != 1 {
		t.Fatalf("unexpected summary: %+v version=%d", report.Summary, report.ConfigVersion)
	}

	exported := doAdminRequest(t, r, http.MethodGet, "/leaderboard/export?limit=1", nil)
	var export service.InviteLeaderboardExport
	if err := json.Unmarshal(exported.Data, &export); err != nil {
		t.Fatalf("unmarshal export failed: %v", err)
	}
	if export.Total != 1 || !strings.HasSuffix(export.FileName, ".csv") {
		t.Fatalf("unexpected export meta: %+v", export)
	}
	raw, err := base64.StdEncoding.DecodeString(export.CSVBase64)
	if err != nil {
		t.Fatalf("decode csv failed: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv failed: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "root" {
		t.Fatalf("unexpected csv rows: %v", rows)
	}
}

func TestInviteLeaderboardAcceptsLimit(t *testing.T) {
	h, r := setupAdminInviteHandlerTest(t)
	seedInviteChain(t, h)

	resp := doAdminRequest(t, r, http.MethodGet, "/leaderboard?page=1&limit=1", nil)
	var report service.InviteLeaderboardReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		t.Fatalf("unmarshal report failed: %v", err)
	}
	if len(report.List) != 1 || report.PageSize != 1 || report.List[0].UserID != "root" {
		t.Fatalf("limit should set the page size, got page_size=%d list=%+v", report.PageSize, report.List)
	}
}

func TestListUserGoldTransactions(t *testing.T) {
	h, r := setupAdminInviteHandlerTest(t)
	seedInviteChain(t, h)

	resp := doAdminRequest(t, r, http.MethodGet, "/users/root/gold-transactions?page=1&page_size=10", nil)
	if resp.StatusCode != 0 {
		t.Fatalf("list gold transactions failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var page struct {
		List  []models.GoldTransaction `json:"list"`
		Total int64                    `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		t.Fatalf("unmarshal gold transactions failed: %v", err)
	}
	if page.Total != 2 || len(page.List) != 2 {
		t.Fatalf("root should have two inviter rewards, got %+v", page)
	}
	for _, txn := range page.List {
		if txn.UserID != "root" || txn.Type != constants.GoldTxnTypeInviteRegisterBy {
			t.Fatalf("unexpected journal row: %+v", txn)
		}
	}
}

func TestInviteTreeAndChainDepthHandlers(t *testing.T) {
	h, r := setupAdminInviteHandlerTest(t)
	seedInviteChain(t, h)

	resp := doAdminRequest(t, r, http.MethodGet, "/users/root/tree", nil)
	var tree service.InviteTreeNode
	if err := json.Unmarshal(resp.Data, &tree); err != nil {
		t.Fatalf("unmarshal tree failed: %v", err)
	}
	if tree.UserID != "root" || len(tree.Children) != 2 {
		t.Fatalf("unexpected tree root: %+v", tree)
	}
	leafFound := false
	for _, child := range tree.Children {
		if child.UserID == "mid" && len(child.Children) == 1 && child.Children[0].UserID == "leaf" {
			leafFound = true
		}
	}
	if !leafFound {
		t.Fatalf("expected leaf under mid, got %+v", tree.Children)
	}

	depthResp := doAdminRequest(t, r, http.MethodGet, "/users/leaf/chain-depth", nil)
	var depth struct {
		UserID string `json:"user_id"`
		Depth  int    `json:"depth"`
	}
	if err := json.Unmarshal(depthResp.Data, &depth); err != nil {
		t.Fatalf("unmarshal depth failed: %v", err)
	}
	if depth.UserID != "leaf" || depth.Depth != 2 {
		t.Fatalf("expected leaf depth 2, got %+v", depth)
	}
}

func TestGetMyInvitePermissions(t *testing.T) {
	h, r := setupAdminInviteHandlerTest(t)
	if err := h.AuthzService.SetAdminRoles(9, []string{"invite_viewer"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	resp := doAdminRequest(t, r, http.MethodGet, "/permissions", nil)
	var data struct {
		AdminID     string   `json:"admin_id"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal permissions failed: %v", err)
	}
	if data.AdminID != "9" || len(data.Roles) != 1 {
		t.Fatalf("unexpected permission response: %+v", data)
	}
	if len(data.Permissions) != 2 {
		t.Fatalf("viewer should only hold read permissions, got %v", data.Permissions)
	}
	for _, permission := range data.Permissions {
		if !strings.HasSuffix(permission, ".read") {
			t.Fatalf("unexpected permission %s", permission)
		}
	}
}
