package storage

import (
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const commentOriginFromContactExpression = "CASE " +
	"WHEN LOWER(author_email) LIKE '%slack.com%' THEN 'slack' " +
	"WHEN LOWER(author_email) LIKE '%figma%' THEN 'figma' " +
	"ELSE 'web' END"

// backfillCommentOrigins classifies rows written before the origin column existed.
func backfillCommentOrigins(database *gorm.DB) error {
	return database.Model(&model.Comment{}).
		Where("origin IS NULL OR TRIM(origin) = ''").
		Update("origin", gorm.Expr(commentOriginFromContactExpression)).Error
}
