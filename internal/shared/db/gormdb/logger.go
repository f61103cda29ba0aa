package gormdb

import (
	"fmt"

	"github.com/platformplatform/account-api/internal/shared/logutil"
)

type logger struct {
	log logutil.Log
}

// Print receives gorm log values: level first, "sql" entries are queries.
func (l logger) Print(values ...interface{}) {
	if len(values) > 1 && values[0] == "sql" {
		// source, duration, query, vars, rows
		if len(values) >= 5 {
			l.log.Debugf("sql", "%v [%v] %v %v", values[1], values[2], values[3], values[4])
		}
		return
	}

	if len(values) > 2 && values[0] == "log" {
		l.log.Warnf("gorm: %s", fmt.Sprint(values[2:]...))
		return
	}

	l.log.Infof("gorm: %s", fmt.Sprint(values...))
}
