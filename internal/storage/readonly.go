package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// redactedColumns 不返回给调用方的列
var redactedColumns = map[string]bool{"password_hash": true}

// visibleColumns 返回可以输出的列下标
func visibleColumns(columns []string) []int {
	keep := make([]int, 0, len(columns))
	for i, col := range columns {
		if !redactedColumns[strings.ToLower(col)] {
			keep = append(keep, i)
		}
	}
	return keep
}

// QueryReadOnly 在只读事务中执行一条已校验的 SELECT，返回列名和行，敏感列会被剔除
func (m *MySQL) QueryReadOnly(ctx context.Context, query string) ([]string, []map[string]interface{}, error) {
	var (
		columns []string
		rows    []map[string]interface{}
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err := tx.Raw(query).Rows()
		if err != nil {
			return err
		}
		defer result.Close()

		all, err := result.Columns()
		if err != nil {
			return err
		}
		keep := visibleColumns(all)
		for _, i := range keep {
			columns = append(columns, all[i])
		}
		for result.Next() {
			values := make([]interface{}, len(all))
			ptrs := make([]interface{}, len(all))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := result.Scan(ptrs...); err != nil {
				return err
			}
			row := make(map[string]interface{}, len(keep))
			for _, i := range keep {
				if b, ok := values[i].([]byte); ok {
					row[all[i]] = string(b)
				} else {
					row[all[i]] = values[i]
				}
			}
			rows = append(rows, row)
		}
		return result.Err()
	}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("只读查询失败: %w", err)
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return columns, rows, nil
}
