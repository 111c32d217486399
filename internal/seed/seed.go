package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	organizationdomain "github.com/smallbiznis/poolfund/internal/organization/domain"
	"gorm.io/gorm"
)

const defaultOrgName = "Main"

// EnsureMainOrg seeds the default organization for startup bootstrap.
func EnsureMainOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	return ensureOrg(db, node.Generate())
}

// EnsureMainOrgWithID seeds the default organization under a fixed id,
// used when DEFAULT_ORG pins the tenant for single-org installs.
func EnsureMainOrgWithID(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return errors.New("seed organization id is required")
	}
	return ensureOrg(db, snowflake.ParseInt64(id))
}

func ensureOrg(db *gorm.DB, id snowflake.ID) error {
	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&organizationdomain.Organization{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		org := organizationdomain.Organization{
			ID:        id,
			Name:      defaultOrgName,
			CreatedAt: time.Now().UTC(),
		}
		return tx.Create(&org).Error
	})
}
