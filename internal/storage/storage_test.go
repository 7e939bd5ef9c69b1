package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"jobook/internal/constants"
	"jobook/internal/storage/models"
	"jobook/pkg/utils"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translateError(fmt.Errorf("wrap: %w", gorm.ErrRecordNotFound)), ErrNotFound)

	dup := &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.vn' for key 'idx_users_email_unique'"}
	assert.ErrorIs(t, translateError(dup), ErrDuplicate)

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))
}

func TestPostIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&models.Post{Status: constants.PostExpired}).IsExpired(now))
	assert.True(t, (&models.Post{Status: constants.PostOpen, EndAt: &past}).IsExpired(now))
	assert.False(t, (&models.Post{Status: constants.PostOpen, EndAt: &future}).IsExpired(now))
	assert.False(t, (&models.Post{Status: constants.PostOpen}).IsExpired(now))
}

func TestTagsJSON(t *testing.T) {
	p := models.Post{Tags: utils.ConvertArrayToJSON([]string{"golang", "remote"})}
	assert.Equal(t, []string{"golang", "remote"}, p.TagList())
	assert.Equal(t, "[]", string(utils.ConvertArrayToJSON(nil)))
	assert.Nil(t, (&models.Post{}).TagList())
	assert.Nil(t, (&models.Post{Tags: []byte("not json")}).TagList())
}

func TestVisibleColumnsDropsPasswordHash(t *testing.T) {
	assert.Equal(t, []int{0, 2}, visibleColumns([]string{"id", "password_hash", "email"}))
	assert.Equal(t, []int{1}, visibleColumns([]string{"PASSWORD_HASH", "full_name"}))
	assert.Empty(t, visibleColumns(nil))
}

func TestContentTypeForExt(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeForExt(".PDF"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ContentTypeForExt(".docx"))
	assert.Equal(t, "image/jpeg", ContentTypeForExt(".jpeg"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExt(".exe"))
}
