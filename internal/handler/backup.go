package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"proxy-panel/internal/middleware"
	"proxy-panel/internal/models"
	"proxy-panel/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BackupHandler makes encrypted snapshots of the sqlite database file.
type BackupHandler struct {
	DB         *gorm.DB
	EncryptKey string
	BackupDir  string
	DBPath     string
}

func NewBackupHandler(db *gorm.DB, encryptKey, backupDir, dbPath string) *BackupHandler {
	return &BackupHandler{
		DB:         db,
		EncryptKey: encryptKey,
		BackupDir:  backupDir,
		DBPath:     dbPath,
	}
}

// CreateBackup encrypts the database file and records the snapshot.
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not authenticated")
		return
	}

	raw, err := os.ReadFile(h.DBPath)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "read database failed")
		return
	}

	enc, err := util.EncryptWithPassphrase(h.EncryptKey, raw)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "encrypt failed")
		return
	}

	if err := os.MkdirAll(h.BackupDir, 0o755); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "create backup dir failed")
		return
	}

	fileName := fmt.Sprintf("backup-%s-%s.bin", time.Now().Format("20060102150405"), uuid.New().String()[:8])
	filePath := filepath.Join(h.BackupDir, fileName)
	if err := os.WriteFile(filePath, enc, 0o600); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "write backup failed")
		return
	}

	backup := models.Backup{
		AdminID:  admin.ID,
		FileName: fileName,
		FilePath: filePath,
		Size:     int64(len(enc)),
	}
	if err := h.DB.Create(&backup).Error; err != nil {
		_ = os.Remove(filePath)
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "save backup record failed")
		return
	}

	util.Success(c, util.Response{
		"backup": gin.H{
			"id":         backup.ID,
			"file_name":  backup.FileName,
			"size":       backup.Size,
			"created_at": backup.CreatedAt,
		},
	})
}

// ListBackups lists recorded snapshots, newest first.
func (h *BackupHandler) ListBackups(c *gin.Context) {
	var list []models.Backup
	if err := h.DB.Order("created_at DESC").Find(&list).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "list backups failed")
		return
	}

	items := make([]gin.H, 0, len(list))
	for i := range list {
		b := &list[i]
		items = append(items, gin.H{
			"id":         b.ID,
			"file_name":  b.FileName,
			"size":       b.Size,
			"created_at": b.CreatedAt,
		})
	}
	util.Success(c, util.Response{"backups": items})
}

// DownloadBackup streams a decrypted snapshot.
func (h *BackupHandler) DownloadBackup(c *gin.Context) {
	backup, ok := h.findBackup(c)
	if !ok {
		return
	}

	enc, err := os.ReadFile(backup.FilePath)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "read backup failed")
		return
	}
	raw, err := util.DecryptWithPassphrase(h.EncryptKey, enc)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "decrypt backup failed")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.FileName+".db"))
	c.Data(http.StatusOK, "application/octet-stream", raw)
}

// RestoreBackup decrypts a snapshot and stages it next to the live
// database file. The running process keeps its open connection, so the
// staged file is swapped in on the next start.
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	backup, ok := h.findBackup(c)
	if !ok {
		return
	}

	enc, err := os.ReadFile(backup.FilePath)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "read backup failed")
		return
	}
	raw, err := util.DecryptWithPassphrase(h.EncryptKey, enc)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "decrypt backup failed")
		return
	}

	stagedPath := h.DBPath + ".restore"
	if err := os.WriteFile(stagedPath, raw, 0o600); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "stage restore failed")
		return
	}

	util.Success(c, util.Response{
		"id":          backup.ID,
		"staged_path": stagedPath,
		"message":     "restore staged; restart the panel to apply",
	})
}

// DeleteBackup removes a snapshot file and its record.
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	backup, ok := h.findBackup(c)
	if !ok {
		return
	}
	_ = os.Remove(backup.FilePath)
	if err := h.DB.Delete(backup).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "delete backup failed")
		return
	}
	util.Success(c, util.Response{"id": backup.ID})
}

func (h *BackupHandler) findBackup(c *gin.Context) (*models.Backup, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid backup id")
		return nil, false
	}
	var backup models.Backup
	if err := h.DB.First(&backup, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "backup not found")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "load backup failed")
		}
		return nil, false
	}
	return &backup, true
}
