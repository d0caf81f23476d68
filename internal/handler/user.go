package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"proxy-panel/internal/core"
	"proxy-panel/internal/database"
	"proxy-panel/internal/models"
	"proxy-panel/internal/proxy"
	"proxy-panel/internal/util"
	"proxy-panel/internal/xray"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler serves user provisioning: CRUD, traffic reports, resets and
// the scheduled tick. Every read-modify-write of one user runs under that
// user's lock.
type UserHandler struct {
	DB           *gorm.DB
	Catalog      *core.CatalogHolder
	Locks        *core.UserLocker
	Notifier     xray.ConfigNotifier
	SubSecret    string
	SubURLPrefix string
	SubTTL       time.Duration
}

func NewUserHandler(db *gorm.DB, catalog *core.CatalogHolder, locks *core.UserLocker,
	notifier xray.ConfigNotifier, subSecret, subURLPrefix string, subTTLHours int) *UserHandler {
	return &UserHandler{
		DB:           db,
		Catalog:      catalog,
		Locks:        locks,
		Notifier:     notifier,
		SubSecret:    subSecret,
		SubURLPrefix: subURLPrefix,
		SubTTL:       time.Duration(subTTLHours) * time.Hour,
	}
}

type nextPlanReq struct {
	UserTemplateID      *uint `json:"user_template_id"`
	DataLimit           int64 `json:"data_limit"`
	Expire              int64 `json:"expire"`
	AddRemainingTraffic bool  `json:"add_remaining_traffic"`
	FireOnEither        *bool `json:"fire_on_either"`
}

func (r *nextPlanReq) toModel() *models.NextPlan {
	fireOnEither := true
	if r.FireOnEither != nil {
		fireOnEither = *r.FireOnEither
	}
	return &models.NextPlan{
		UserTemplateID:      r.UserTemplateID,
		DataLimit:           r.DataLimit,
		Expire:              r.Expire,
		AddRemainingTraffic: r.AddRemainingTraffic,
		FireOnEither:        fireOnEither,
	}
}

type createUserReq struct {
	Username               string         `json:"username" binding:"required"`
	Status                 string         `json:"status"`
	DataLimit              *int64         `json:"data_limit"`
	DataLimitResetStrategy string         `json:"data_limit_reset_strategy"`
	Expire                 *int64         `json:"expire"` // unix seconds, 0 means no expiry
	OnHoldExpireDuration   *int64         `json:"on_hold_expire_duration"`
	OnHoldTimeout          *int64         `json:"on_hold_timeout"`
	GroupIDs               []uint         `json:"group_ids"`
	ProxySettings          proxy.Settings `json:"proxy_settings"`
	Note                   string         `json:"note"`
	NextPlan               *nextPlanReq   `json:"next_plan"`
	TemplateID             *uint          `json:"template_id"`
}

// CreateUser builds a candidate user, optionally stamps it from a
// template, validates the full rule list and persists it.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}

	now := time.Now()
	user := models.User{
		Username:               req.Username,
		Status:                 models.UserStatus(req.Status),
		DataLimit:              req.DataLimit,
		DataLimitResetStrategy: models.DataLimitResetStrategy(req.DataLimitResetStrategy),
		OnHoldExpireDuration:   req.OnHoldExpireDuration,
		ProxySettings:          req.ProxySettings,
		Note:                   req.Note,
	}
	if req.Expire != nil && *req.Expire > 0 {
		exp := time.Unix(*req.Expire, 0)
		user.Expire = &exp
	}
	if req.OnHoldTimeout != nil && *req.OnHoldTimeout > 0 {
		t := time.Unix(*req.OnHoldTimeout, 0)
		user.OnHoldTimeout = &t
	}
	if req.NextPlan != nil {
		user.NextPlan = req.NextPlan.toModel()
	}

	if req.TemplateID != nil {
		var tmpl models.UserTemplate
		if err := h.DB.Preload("Groups.Inbounds").First(&tmpl, *req.TemplateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fromError(c, &core.NotFoundError{Resource: "template", Key: strconv.FormatUint(uint64(*req.TemplateID), 10)})
			} else {
				util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load template failed")
			}
			return
		}
		core.StampFromTemplate(&user, &tmpl, now)
	}

	if len(req.GroupIDs) > 0 {
		groups, err := database.LoadGroupsByIDs(h.DB, req.GroupIDs)
		if err != nil {
			fromError(c, err)
			return
		}
		user.Groups = groups
	}

	core.NormalizeUser(&user)
	if err := core.ValidateUser(&user, true); err != nil {
		fromError(c, err)
		return
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "check username failed")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "username already exists")
		return
	}

	if err := h.DB.Create(&user).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create user failed")
		return
	}

	h.respondUser(c, &user)
}

type modifyUserReq struct {
	Status                 *string         `json:"status"`
	DataLimit              *int64          `json:"data_limit"`
	DataLimitResetStrategy *string         `json:"data_limit_reset_strategy"`
	Expire                 *int64          `json:"expire"`
	OnHoldExpireDuration   *int64          `json:"on_hold_expire_duration"`
	GroupIDs               []uint          `json:"group_ids"`
	ProxySettings          *proxy.Settings `json:"proxy_settings"`
	Note                   *string         `json:"note"`
	NextPlan               *nextPlanReq    `json:"next_plan"`
}

// ModifyUser applies a partial admin edit under the user's lock. Direct
// status writes are limited to active/disabled/on_hold, and the resolved
// inbound set is re-evaluated afterwards.
func (h *UserHandler) ModifyUser(c *gin.Context) {
	username := c.Param("username")
	var req modifyUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}

	unlock := h.Locks.Lock(username)
	defer unlock()

	user, err := database.LoadUser(h.DB, username)
	if err != nil {
		fromError(c, err)
		return
	}

	if req.Status != nil {
		status := models.UserStatus(*req.Status)
		if err := core.ValidateStatusWrite(user, status); err != nil {
			fromError(c, err)
			return
		}
		user.Status = status
		if status != models.StatusOnHold {
			user.OnHoldExpireDuration = nil
			user.OnHoldTimeout = nil
		}
	}
	if req.DataLimit != nil {
		user.DataLimit = req.DataLimit
	}
	if req.DataLimitResetStrategy != nil {
		user.DataLimitResetStrategy = models.DataLimitResetStrategy(*req.DataLimitResetStrategy)
	}
	if req.Expire != nil {
		if *req.Expire > 0 {
			exp := time.Unix(*req.Expire, 0)
			user.Expire = &exp
		} else {
			user.Expire = nil
		}
	}
	if req.OnHoldExpireDuration != nil {
		user.OnHoldExpireDuration = req.OnHoldExpireDuration
	}
	if req.ProxySettings != nil {
		user.ProxySettings = *req.ProxySettings
	}
	if req.Note != nil {
		user.Note = *req.Note
	}
	if req.NextPlan != nil {
		plan := req.NextPlan.toModel()
		plan.UserID = user.ID
		if user.NextPlan != nil {
			plan.ID = user.NextPlan.ID
		}
		user.NextPlan = plan
	}

	core.NormalizeUser(user)
	if err := core.ValidateUser(user, false); err != nil {
		fromError(c, err)
		return
	}

	if req.GroupIDs != nil {
		if len(req.GroupIDs) == 0 {
			fromError(c, &core.ValidationError{Violations: []core.Violation{{
				Rule: "groups_required", Message: "at least one group is required",
			}}})
			return
		}
		groups, err := database.LoadGroupsByIDs(h.DB, req.GroupIDs)
		if err != nil {
			fromError(c, err)
			return
		}
		if err := database.ReplaceUserGroups(h.DB, user, groups); err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "update groups failed")
			return
		}
	}

	evaluated, _ := core.EvaluateStatus(*user, time.Now())
	*user = evaluated

	if err := database.SaveUser(h.DB, user); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save user failed")
		return
	}

	h.notifyUser(user)
	h.respondUser(c, user)
}

// GetUser returns one user.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := database.LoadUser(h.DB, c.Param("username"))
	if err != nil {
		fromError(c, err)
		return
	}
	h.respondUser(c, user)
}

// ListUsers returns users with offset/limit pagination.
func (h *UserHandler) ListUsers(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var total int64
	if err := h.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "count users failed")
		return
	}

	var users []models.User
	if err := h.DB.Preload("Groups.Inbounds").Preload("NextPlan").
		Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "list users failed")
		return
	}

	items := make([]gin.H, 0, len(users))
	for i := range users {
		items = append(items, h.userJSON(&users[i]))
	}
	util.Success(c, util.Response{
		"users": items,
		"total": total,
	})
}

// DeleteUser soft-deletes a user; usage history keeps referencing the row.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	username := c.Param("username")

	unlock := h.Locks.Lock(username)
	defer unlock()

	user, err := database.LoadUser(h.DB, username)
	if err != nil {
		fromError(c, err)
		return
	}
	if err := h.DB.Delete(user).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "delete user failed")
		return
	}
	h.Notifier.NotifyConfigChanged(username, nil)
	util.Success(c, util.Response{"username": username})
}

type usageReq struct {
	Bytes int64 `json:"bytes" binding:"required"`
}

// ReportUsage adds reported bytes to used_traffic and re-evaluates the
// status, all under the user's lock so a racing report never loses a
// transition.
func (h *UserHandler) ReportUsage(c *gin.Context) {
	username := c.Param("username")
	var req usageReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Bytes < 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}

	unlock := h.Locks.Lock(username)
	defer unlock()

	user, err := database.LoadUser(h.DB, username)
	if err != nil {
		fromError(c, err)
		return
	}

	now := time.Now()
	user.UsedTraffic += req.Bytes
	user.OnlineAt = &now

	evaluated, changed := core.EvaluateStatus(*user, now)
	*user = evaluated

	if evaluated.NextPlan == nil && user.ID != 0 {
		// a consumed rollover plan is removed from storage
		if err := h.DB.Where("user_id = ?", user.ID).Delete(&models.NextPlan{}).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "clear next plan failed")
			return
		}
	}
	if err := database.SaveUser(h.DB, user); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save user failed")
		return
	}

	if changed {
		h.notifyUser(user)
	}
	util.Success(c, util.Response{
		"username":     user.Username,
		"status":       user.Status,
		"used_traffic": user.UsedTraffic,
	})
}

// ResetUsage zeroes used_traffic on admin request. The pre-reset usage is
// folded into the lifetime counter first.
func (h *UserHandler) ResetUsage(c *gin.Context) {
	username := c.Param("username")

	unlock := h.Locks.Lock(username)
	defer unlock()

	user, err := database.LoadUser(h.DB, username)
	if err != nil {
		fromError(c, err)
		return
	}

	now := time.Now()
	user.LifetimeUsedTraffic += user.UsedTraffic
	user.UsedTraffic = 0
	user.LastTrafficResetAt = &now
	if user.Status == models.StatusLimited && !core.DataLimitReached(user) {
		user.Status = models.StatusActive
	}

	if err := database.SaveUser(h.DB, user); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save user failed")
		return
	}

	h.notifyUser(user)
	util.Success(c, util.Response{
		"username":              user.Username,
		"status":                user.Status,
		"used_traffic":          user.UsedTraffic,
		"lifetime_used_traffic": user.LifetimeUsedTraffic,
	})
}

// Tick runs the periodic evaluation for every user: reset strategies
// first, then the status machine. An external scheduler calls this; the
// panel keeps no timer of its own.
func (h *UserHandler) Tick(c *gin.Context) {
	var usernames []string
	if err := h.DB.Model(&models.User{}).Order("id").Pluck("username", &usernames).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "list users failed")
		return
	}

	now := time.Now()
	var processed int
	for _, username := range usernames {
		if err := h.tickUser(username, now); err != nil {
			log.Printf("tick %s: %v", username, err)
			continue
		}
		processed++
	}

	util.Success(c, util.Response{
		"users_checked": len(usernames),
		"processed":     processed,
	})
}

func (h *UserHandler) tickUser(username string, now time.Time) error {
	unlock := h.Locks.Lock(username)
	defer unlock()

	user, err := database.LoadUser(h.DB, username)
	if err != nil {
		return err
	}

	afterReset, didReset := core.ApplyResetStrategy(*user, now)
	evaluated, changed := core.EvaluateStatus(afterReset, now)
	if !didReset && !changed {
		return nil
	}
	*user = evaluated

	if evaluated.NextPlan == nil {
		if err := h.DB.Where("user_id = ?", user.ID).Delete(&models.NextPlan{}).Error; err != nil {
			return err
		}
	}
	if err := database.SaveUser(h.DB, user); err != nil {
		return err
	}
	if changed {
		h.notifyUser(user)
	}
	return nil
}

// notifyUser resolves the user's effective inbound set and fires the
// config-changed signal. Stale group tags are only logged.
func (h *UserHandler) notifyUser(user *models.User) {
	cfg := core.BuildEffectiveConfig(user, h.Catalog.Current())
	for _, tag := range cfg.StaleTags {
		log.Printf("warning: user %s references stale inbound tag %q", user.Username, tag)
	}
	tags := make([]string, 0, len(cfg.Records))
	for _, rec := range cfg.Records {
		tags = append(tags, rec.Tag)
	}
	h.Notifier.NotifyConfigChanged(user.Username, tags)
}

func (h *UserHandler) respondUser(c *gin.Context, user *models.User) {
	util.Success(c, util.Response{"user": h.userJSON(user)})
}

func (h *UserHandler) userJSON(user *models.User) gin.H {
	token, err := util.CreateSubscriptionToken(h.SubSecret, user.Username, h.SubTTL)
	subscriptionURL := ""
	if err == nil {
		subscriptionURL = h.SubURLPrefix + "/sub/" + token
	}

	out := gin.H{
		"id":                        user.ID,
		"username":                  user.Username,
		"status":                    user.Status,
		"used_traffic":              user.UsedTraffic,
		"lifetime_used_traffic":     user.LifetimeUsedTraffic,
		"data_limit":                user.DataLimit,
		"data_limit_reset_strategy": user.DataLimitResetStrategy,
		"group_ids":                 user.GroupIDs(),
		"proxy_settings":            user.ProxySettings,
		"note":                      user.Note,
		"subscription_url":          subscriptionURL,
		"created_at":                user.CreatedAt,
	}
	if user.Expire != nil {
		out["expire"] = user.Expire.Unix()
	}
	if user.OnHoldExpireDuration != nil {
		out["on_hold_expire_duration"] = *user.OnHoldExpireDuration
	}
	if user.NextPlan != nil {
		out["next_plan"] = gin.H{
			"user_template_id":      user.NextPlan.UserTemplateID,
			"data_limit":            user.NextPlan.DataLimit,
			"expire":                user.NextPlan.Expire,
			"add_remaining_traffic": user.NextPlan.AddRemainingTraffic,
			"fire_on_either":        user.NextPlan.FireOnEither,
		}
	}
	return out
}
