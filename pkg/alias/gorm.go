package alias

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// activeStatus is the status of an alias that is applied to searches.
const activeStatus = "active"

// TagAlias is a row of the tag_aliases table.
type TagAlias struct {
	ID             int64
	AntecedentName string
	ConsequentName string
	Status         string
}

// TableName implements gorm's tabler.
func (TagAlias) TableName() string {
	return "tag_aliases"
}

// GormLoader reads active aliases from the application database.
type GormLoader struct {
	db *gorm.DB
}

// NewGormLoader wraps an open database.
func NewGormLoader(db *gorm.DB) *GormLoader {
	return &GormLoader{db: db}
}

// OpenMySQL opens the alias database from a dsn.
func OpenMySQL(dsn string) (*GormLoader, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open alias database")
	}
	return NewGormLoader(db), nil
}

// Load implements Loader. Names are lowercased to match the tokens of a query.
func (l *GormLoader) Load(ctx context.Context) (map[string]string, error) {
	var rows []TagAlias
	err := l.db.WithContext(ctx).
		Select("antecedent_name", "consequent_name").
		Where("status = ?", activeStatus).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "unable to query tag aliases")
	}

	aliases := make(map[string]string, len(rows))
	for _, row := range rows {
		antecedent := strings.ToLower(row.AntecedentName)
		consequent := strings.ToLower(row.ConsequentName)
		if antecedent == "" || consequent == "" || antecedent == consequent {
			continue
		}
		aliases[antecedent] = consequent
	}
	return aliases, nil
}
