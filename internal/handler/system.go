package handler

import (
	"net/http"

	"proxy-panel/internal/core"
	"proxy-panel/internal/database"
	"proxy-panel/internal/util"
	"proxy-panel/internal/xray"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SystemHandler serves catalog maintenance.
type SystemHandler struct {
	DB             *gorm.DB
	Catalog        *core.CatalogHolder
	XrayConfigPath string
}

func NewSystemHandler(db *gorm.DB, catalog *core.CatalogHolder, xrayConfigPath string) *SystemHandler {
	return &SystemHandler{DB: db, Catalog: catalog, XrayConfigPath: xrayConfigPath}
}

// ReloadCatalog re-reads the engine's config file, swaps in a whole new
// catalog snapshot and syncs the inbounds table against it.
func (h *SystemHandler) ReloadCatalog(c *gin.Context) {
	inbounds, err := xray.LoadInbounds(h.XrayConfigPath)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, err.Error())
		return
	}
	cat := h.Catalog.Replace(inbounds)
	if err := database.SyncInbounds(h.DB, cat); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, err.Error())
		return
	}
	util.Success(c, util.Response{
		"version":  cat.Version(),
		"inbounds": cat.Tags(),
	})
}

// GetCatalog returns the current snapshot.
func (h *SystemHandler) GetCatalog(c *gin.Context) {
	cat := h.Catalog.Current()
	items := make([]gin.H, 0, cat.Len())
	for _, tag := range cat.Tags() {
		in, _ := cat.Get(tag)
		items = append(items, gin.H{
			"tag":      in.Tag,
			"protocol": in.Protocol,
			"port":     in.Port,
			"network":  in.Network,
		})
	}
	util.Success(c, util.Response{
		"version":  cat.Version(),
		"inbounds": items,
	})
}
