package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// buildContainsCondition 构建多列不区分大小写的子串匹配条件，返回条件与参数。
func buildContainsCondition(db *gorm.DB, columns []string, keyword string) (string, []interface{}) {
	return buildContainsConditionByDialect(dbDialectName(db), columns, keyword)
}

func buildContainsConditionByDialect(dialect string, columns []string, keyword string) (string, []interface{}) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		column = strings.TrimSpace(column)
		if column == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(dialect)) {
		case "postgres", "postgresql":
			parts = append(parts, fmt.Sprintf(`%s ILIKE ? ESCAPE '\'`, column))
		default:
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, column))
		}
		args = append(args, pattern)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
