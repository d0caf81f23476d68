package handler

import (
	"log"
	"net/http"
	"time"

	"proxy-panel/internal/core"
	"proxy-panel/internal/database"
	"proxy-panel/internal/models"
	"proxy-panel/internal/util"
	"proxy-panel/internal/xray"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubscriptionHandler serves the client-facing subscription artifact. A
// fetch is the "first use" that converts an on-hold user's relative
// duration into an absolute deadline.
type SubscriptionHandler struct {
	DB        *gorm.DB
	Catalog   *core.CatalogHolder
	Locks     *core.UserLocker
	Notifier  xray.ConfigNotifier
	SubSecret string
	XrayHost  string
}

func NewSubscriptionHandler(db *gorm.DB, catalog *core.CatalogHolder, locks *core.UserLocker,
	notifier xray.ConfigNotifier, subSecret, xrayHost string) *SubscriptionHandler {
	return &SubscriptionHandler{
		DB:        db,
		Catalog:   catalog,
		Locks:     locks,
		Notifier:  notifier,
		SubSecret: subSecret,
		XrayHost:  xrayHost,
	}
}

// Fetch resolves the effective configuration for the user named by the
// subscription token and renders one shareable link per inbound.
func (h *SubscriptionHandler) Fetch(c *gin.Context) {
	username, err := util.ParseSubscriptionToken(h.SubSecret, c.Param("token"))
	if err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid subscription token")
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
	activated := false
	if next, ok := core.ActivateOnHold(*user, now); ok {
		*user = next
		activated = true
	}
	evaluated, changed := core.EvaluateStatus(*user, now)
	*user = evaluated

	user.SubUpdatedAt = &now
	user.SubLastUserAgent = c.Request.UserAgent()

	if evaluated.NextPlan == nil {
		if err := h.DB.Where("user_id = ?", user.ID).Delete(&models.NextPlan{}).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "clear next plan failed")
			return
		}
	}
	if err := database.SaveUser(h.DB, user); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save user failed")
		return
	}

	cfg := core.BuildEffectiveConfig(user, h.Catalog.Current())
	for _, tag := range cfg.StaleTags {
		log.Printf("warning: user %s references stale inbound tag %q", username, tag)
	}

	if activated || changed {
		tags := make([]string, 0, len(cfg.Records))
		for _, rec := range cfg.Records {
			tags = append(tags, rec.Tag)
		}
		h.Notifier.NotifyConfigChanged(username, tags)
	}

	if cfg.Blocked {
		c.JSON(http.StatusNotAcceptable, gin.H{
			"code":    util.CodeAuth,
			"message": "subscription is not active",
			"status":  user.Status,
		})
		return
	}

	links := make([]string, 0, len(cfg.Records))
	for _, rec := range cfg.Records {
		if link := xray.BuildLink(username, h.XrayHost, rec); link != "" {
			links = append(links, link)
		}
	}

	util.Success(c, util.Response{
		"username": username,
		"status":   user.Status,
		"inbounds": cfg.Records,
		"links":    links,
	})
}
