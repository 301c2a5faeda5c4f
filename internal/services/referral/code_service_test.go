package referral

import (
	"strings"
	"testing"

	"github.com/fitcore/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateCode(t *testing.T) {
	db := setupTestDB(t)
	configService := NewConfigService(db, nil)
	service := NewCodeService(db, configService)
	tenantID := uuid.New()
	memberID := uuid.New()

	t.Run("creates a code on first request", func(t *testing.T) {
		code, err := service.GetOrCreateCode(tenantID, memberID)
		require.NoError(t, err)
		assert.Equal(t, tenantID, code.TenantID)
		assert.Equal(t, memberID, code.MemberID)
		assert.True(t, code.IsActive)
		assert.True(t, strings.HasPrefix(code.Code, "REF-"))
		assert.Len(t, code.Code, len("REF-")+6)
	})

	t.Run("returns the same code on repeat requests", func(t *testing.T) {
		first, err := service.GetOrCreateCode(tenantID, memberID)
		require.NoError(t, err)

		second, err := service.GetOrCreateCode(tenantID, memberID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Code, second.Code)
	})

	t.Run("uses the tenant's configured prefix", func(t *testing.T) {
		otherTenant := uuid.New()
		_, err := configService.UpdateConfig(otherTenant, UpdateConfigInput{
			CodePrefix: "Gold Gym",
			RewardType: models.RewardTypeWalletCredit,
		})
		require.NoError(t, err)

		code, err := service.GetOrCreateCode(otherTenant, uuid.New())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(code.Code, "GOLDGYM-"), "got %s", code.Code)
	})
}

func TestRecordClick(t *testing.T) {
	db := setupTestDB(t)
	service := NewCodeService(db, NewConfigService(db, nil))
	tenantID := uuid.New()

	t.Run("increments the click counter on an active code", func(t *testing.T) {
		rc := activeCode(t, db, tenantID, uuid.New(), "REF-ACTIVE")

		require.NoError(t, service.RecordClick(rc.ID))
		require.NoError(t, service.RecordClick(rc.ID))

		var reloaded models.ReferralCode
		require.NoError(t, db.First(&reloaded, "id = ?", rc.ID).Error)
		assert.Equal(t, int64(2), reloaded.ClickCount)
	})

	t.Run("does not count clicks on a deactivated code", func(t *testing.T) {
		rc := activeCode(t, db, tenantID, uuid.New(), "REF-OFF")
		_, err := service.DeactivateCode(rc.ID)
		require.NoError(t, err)

		require.NoError(t, service.RecordClick(rc.ID))

		var reloaded models.ReferralCode
		require.NoError(t, db.First(&reloaded, "id = ?", rc.ID).Error)
		assert.Equal(t, int64(0), reloaded.ClickCount)
	})
}

func TestActivateDeactivateCode(t *testing.T) {
	db := setupTestDB(t)
	service := NewCodeService(db, NewConfigService(db, nil))
	rc := activeCode(t, db, uuid.New(), uuid.New(), "REF-TOGGLE")

	deactivated, err := service.DeactivateCode(rc.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	activated, err := service.ActivateCode(rc.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
}

func TestGetByCode(t *testing.T) {
	db := setupTestDB(t)
	service := NewCodeService(db, NewConfigService(db, nil))
	activeCode(t, db, uuid.New(), uuid.New(), "REF-KNOWN")

	t.Run("finds an existing code", func(t *testing.T) {
		rc, err := service.GetByCode("REF-KNOWN")
		require.NoError(t, err)
		require.NotNil(t, rc)
		assert.Equal(t, "REF-KNOWN", rc.Code)
	})

	t.Run("returns nil for an unknown code", func(t *testing.T) {
		rc, err := service.GetByCode("REF-NOPE")
		require.NoError(t, err)
		assert.Nil(t, rc)
	})
}

func TestGetTopReferrers(t *testing.T) {
	db := setupTestDB(t)
	service := NewCodeService(db, NewConfigService(db, nil))
	tenantID := uuid.New()

	for i, conversions := range []int64{3, 10, 1} {
		rc := activeCode(t, db, tenantID, uuid.New(), "REF-TOP"+string(rune('A'+i)))
		require.NoError(t, db.Model(rc).Update("conversion_count", conversions).Error)
	}

	top, err := service.GetTopReferrers(tenantID, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(10), top[0].ConversionCount)
	assert.Equal(t, int64(3), top[1].ConversionCount)
}
