package handler

import (
	"errors"
	"net/http"
	"strconv"

	"proxy-panel/internal/core"
	"proxy-panel/internal/database"
	"proxy-panel/internal/models"
	"proxy-panel/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TemplateHandler serves user template CRUD.
type TemplateHandler struct {
	DB *gorm.DB
}

func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{DB: db}
}

type templateReq struct {
	Name           string `json:"name" binding:"required"`
	DataLimit      *int64 `json:"data_limit"`
	ExpireDuration *int64 `json:"expire_duration"`
	UsernamePrefix string `json:"username_prefix"`
	UsernameSuffix string `json:"username_suffix"`
	GroupIDs       []uint `json:"group_ids"`
}

func (r *templateReq) validate() error {
	if err := util.ValidateTemplateAffix(r.UsernamePrefix); err != nil {
		return err
	}
	if err := util.ValidateTemplateAffix(r.UsernameSuffix); err != nil {
		return err
	}
	if r.DataLimit != nil && *r.DataLimit < 0 {
		return errors.New("data_limit must be 0 or greater")
	}
	if r.ExpireDuration != nil && *r.ExpireDuration < 0 {
		return errors.New("expire_duration must be 0 or greater")
	}
	return nil
}

// CreateTemplate creates a template. Unlike users, templates may carry an
// empty group set.
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req templateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := req.validate(); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	groups, err := database.LoadGroupsByIDs(h.DB, req.GroupIDs)
	if err != nil {
		fromError(c, err)
		return
	}

	tmpl := models.UserTemplate{
		Name:           req.Name,
		DataLimit:      normalizeLimit(req.DataLimit),
		ExpireDuration: normalizeLimit(req.ExpireDuration),
		UsernamePrefix: req.UsernamePrefix,
		UsernameSuffix: req.UsernameSuffix,
		Groups:         groups,
	}
	if err := h.DB.Create(&tmpl).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create template failed")
		return
	}
	h.respondTemplate(c, &tmpl)
}

// ListTemplates returns all templates.
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	var templates []models.UserTemplate
	if err := h.DB.Preload("Groups").Order("id").Find(&templates).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "list templates failed")
		return
	}
	items := make([]gin.H, 0, len(templates))
	for i := range templates {
		items = append(items, templateJSON(&templates[i]))
	}
	util.Success(c, util.Response{"templates": items, "total": len(items)})
}

// GetTemplate returns one template by id.
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tmpl, ok := h.findTemplate(c)
	if !ok {
		return
	}
	h.respondTemplate(c, tmpl)
}

// ModifyTemplate updates a template.
func (h *TemplateHandler) ModifyTemplate(c *gin.Context) {
	tmpl, ok := h.findTemplate(c)
	if !ok {
		return
	}

	var req templateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid parameters")
		return
	}
	if err := req.validate(); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	groups, err := database.LoadGroupsByIDs(h.DB, req.GroupIDs)
	if err != nil {
		fromError(c, err)
		return
	}

	tmpl.Name = req.Name
	tmpl.DataLimit = normalizeLimit(req.DataLimit)
	tmpl.ExpireDuration = normalizeLimit(req.ExpireDuration)
	tmpl.UsernamePrefix = req.UsernamePrefix
	tmpl.UsernameSuffix = req.UsernameSuffix
	if err := h.DB.Model(tmpl).Association("Groups").Replace(groups); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "update groups failed")
		return
	}
	tmpl.Groups = groups
	if err := h.DB.Save(tmpl).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save template failed")
		return
	}
	h.respondTemplate(c, tmpl)
}

// DeleteTemplate removes a template.
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	tmpl, ok := h.findTemplate(c)
	if !ok {
		return
	}
	if err := h.DB.Select("Groups").Delete(tmpl).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "delete template failed")
		return
	}
	util.Success(c, util.Response{"id": tmpl.ID})
}

func (h *TemplateHandler) findTemplate(c *gin.Context) (*models.UserTemplate, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid template id")
		return nil, false
	}
	var tmpl models.UserTemplate
	if err := h.DB.Preload("Groups").First(&tmpl, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fromError(c, &core.NotFoundError{Resource: "template", Key: c.Param("id")})
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load template failed")
		}
		return nil, false
	}
	return &tmpl, true
}

func (h *TemplateHandler) respondTemplate(c *gin.Context, tmpl *models.UserTemplate) {
	util.Success(c, util.Response{"template": templateJSON(tmpl)})
}

func templateJSON(tmpl *models.UserTemplate) gin.H {
	return gin.H{
		"id":              tmpl.ID,
		"name":            tmpl.Name,
		"data_limit":      tmpl.DataLimit,
		"expire_duration": tmpl.ExpireDuration,
		"username_prefix": tmpl.UsernamePrefix,
		"username_suffix": tmpl.UsernameSuffix,
		"group_ids":       tmpl.GroupIDs(),
	}
}

// normalizeLimit treats zero as unset, matching the user fields.
func normalizeLimit(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
