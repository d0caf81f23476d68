package handler

import (
	"errors"
	"net/http"
	"strconv"

	"proxy-panel/internal/core"
	"proxy-panel/internal/models"
	"proxy-panel/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GroupHandler serves group CRUD. Inbound tags are validated against the
// live catalog on every write so a group never starts out stale.
type GroupHandler struct {
	DB      *gorm.DB
	Catalog *core.CatalogHolder
}

func NewGroupHandler(db *gorm.DB, catalog *core.CatalogHolder) *GroupHandler {
	return &GroupHandler{DB: db, Catalog: catalog}
}

type groupReq struct {
	Name        string   `json:"name" binding:"required"`
	InboundTags []string `json:"inbound_tags"`
	IsDisabled  bool     `json:"is_disabled"`
}

func (h *GroupHandler) checkTags(tags []string) error {
	cat := h.Catalog.Current()
	for _, tag := range tags {
		if !cat.Has(tag) {
			return &core.NotFoundError{Resource: "inbound", Key: tag}
		}
	}
	return nil
}

func (h *GroupHandler) loadInbounds(tags []string) ([]models.Inbound, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	var inbounds []models.Inbound
	if err := h.DB.Where("tag IN ?", tags).Find(&inbounds).Error; err != nil {
		return nil, err
	}
	return inbounds, nil
}

// CreateGroup creates a group after validating its name and tags.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req groupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := util.ValidateGroupName(req.Name); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if err := h.checkTags(req.InboundTags); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	inbounds, err := h.loadInbounds(req.InboundTags)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load inbounds failed")
		return
	}

	group := models.Group{
		Name:       req.Name,
		IsDisabled: req.IsDisabled,
		Inbounds:   inbounds,
	}
	if err := h.DB.Create(&group).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create group failed")
		return
	}
	h.respondGroup(c, &group)
}

// ListGroups returns all groups with member counts.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	var groups []models.Group
	if err := h.DB.Preload("Inbounds").Order("id").Find(&groups).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "list groups failed")
		return
	}

	items := make([]gin.H, 0, len(groups))
	for i := range groups {
		items = append(items, h.groupJSON(&groups[i]))
	}
	util.Success(c, util.Response{
		"groups": items,
		"total":  len(items),
	})
}

// GetGroup returns one group by id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}
	h.respondGroup(c, group)
}

// ModifyGroup updates a group's name, tags or disabled flag. Disabling a
// group keeps its memberships; members just stop receiving its tags.
func (h *GroupHandler) ModifyGroup(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}

	var req groupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := util.ValidateGroupName(req.Name); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if err := h.checkTags(req.InboundTags); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	inbounds, err := h.loadInbounds(req.InboundTags)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load inbounds failed")
		return
	}

	group.Name = req.Name
	group.IsDisabled = req.IsDisabled
	if err := h.DB.Model(group).Association("Inbounds").Replace(inbounds); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "update inbounds failed")
		return
	}
	group.Inbounds = inbounds
	if err := h.DB.Save(group).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save group failed")
		return
	}
	h.respondGroup(c, group)
}

// DeleteGroup removes a group. Memberships cascade; inbounds stay.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	group, ok := h.findGroup(c)
	if !ok {
		return
	}
	if err := h.DB.Select("Inbounds").Delete(group).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "delete group failed")
		return
	}
	util.Success(c, util.Response{"id": group.ID})
}

func (h *GroupHandler) findGroup(c *gin.Context) (*models.Group, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid group id")
		return nil, false
	}
	var group models.Group
	if err := h.DB.Preload("Inbounds").First(&group, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fromError(c, &core.NotFoundError{Resource: "group", Key: c.Param("id")})
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load group failed")
		}
		return nil, false
	}
	return &group, true
}

func (h *GroupHandler) respondGroup(c *gin.Context, group *models.Group) {
	util.Success(c, util.Response{"group": h.groupJSON(group)})
}

func (h *GroupHandler) groupJSON(group *models.Group) gin.H {
	var totalUsers int64
	_ = h.DB.Table("user_groups").Where("group_id = ?", group.ID).Count(&totalUsers).Error

	return gin.H{
		"id":           group.ID,
		"name":         group.Name,
		"inbound_tags": group.InboundTags(),
		"is_disabled":  group.IsDisabled,
		"total_users":  totalUsers,
	}
}
