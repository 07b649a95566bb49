package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
)

// timeLayout is fixed width so that text comparison orders instants.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// field binds one column to a struct member for both writes and scans.
type field struct {
	column string
	value  func() (any, error)
	dest   func() (any, func() error)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func noop() error { return nil }

func int64Col(column string, p *int64) field {
	return field{
		column: column,
		value:  func() (any, error) { return *p, nil },
		dest:   func() (any, func() error) { return p, noop },
	}
}

func intCol(column string, p *int) field {
	var raw int64
	return field{
		column: column,
		value:  func() (any, error) { return int64(*p), nil },
		dest: func() (any, func() error) {
			return &raw, func() error { *p = int(raw); return nil }
		},
	}
}

func nullInt64Col(column string, p **int64) field {
	var raw sql.NullInt64
	return field{
		column: column,
		value: func() (any, error) {
			if *p == nil {
				return nil, nil
			}
			return **p, nil
		},
		dest: func() (any, func() error) {
			return &raw, func() error {
				if raw.Valid {
					v := raw.Int64
					*p = &v
				} else {
					*p = nil
				}
				return nil
			}
		},
	}
}

func stringCol(column string, p *string) field {
	var raw sql.NullString
	return field{
		column: column,
		value:  func() (any, error) { return *p, nil },
		dest: func() (any, func() error) {
			return &raw, func() error { *p = raw.String; return nil }
		},
	}
}

func floatCol(column string, p *float64) field {
	return field{
		column: column,
		value:  func() (any, error) { return *p, nil },
		dest:   func() (any, func() error) { return p, noop },
	}
}

// boolCol stores booleans as 0/1 integers in every dialect.
func boolCol(column string, p *bool) field {
	var raw int64
	return field{
		column: column,
		value: func() (any, error) {
			if *p {
				return int64(1), nil
			}
			return int64(0), nil
		},
		dest: func() (any, func() error) {
			return &raw, func() error { *p = raw != 0; return nil }
		},
	}
}

func bytesCol(column string, p *[]byte) field {
	var raw []byte
	return field{
		column: column,
		value: func() (any, error) {
			if *p == nil {
				return nil, nil
			}
			return *p, nil
		},
		dest: func() (any, func() error) {
			return &raw, func() error {
				if raw == nil {
					*p = nil
					return nil
				}
				*p = append([]byte{}, raw...)
				return nil
			}
		},
	}
}

func timeCol(column string, p *time.Time) field {
	var raw sql.NullString
	return field{
		column: column,
		value:  func() (any, error) { return formatTime(*p), nil },
		dest: func() (any, func() error) {
			return &raw, func() error {
				if !raw.Valid || raw.String == "" {
					*p = time.Time{}
					return nil
				}
				t, err := parseTime(raw.String)
				*p = t
				return err
			}
		},
	}
}

func nullTimeCol(column string, p **time.Time) field {
	var raw sql.NullString
	return field{
		column: column,
		value: func() (any, error) {
			if *p == nil {
				return nil, nil
			}
			return formatTime(**p), nil
		},
		dest: func() (any, func() error) {
			return &raw, func() error {
				if !raw.Valid || raw.String == "" {
					*p = nil
					return nil
				}
				t, err := parseTime(raw.String)
				if err != nil {
					return err
				}
				*p = &t
				return nil
			}
		},
	}
}

func attrsCol(column string, p *models.Attributes) field {
	var raw sql.NullString
	return field{
		column: column,
		value: func() (any, error) {
			if len(*p) == 0 {
				return "{}", nil
			}
			data, err := json.Marshal(*p)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", column, err)
			}
			return string(data), nil
		},
		dest: func() (any, func() error) {
			return &raw, func() error {
				attrs := models.Attributes{}
				if raw.Valid && raw.String != "" {
					if err := json.Unmarshal([]byte(raw.String), &attrs); err != nil {
						return fmt.Errorf("decode %s: %w", column, err)
					}
				}
				*p = attrs
				return nil
			}
		},
	}
}

// enumCol stores a closed status enum as text and rejects unknown values on scan.
func enumCol[S ~string](column string, p *S, parse func(string) (S, error)) field {
	var raw sql.NullString
	return field{
		column: column,
		value: func() (any, error) {
			if _, err := parse(string(*p)); err != nil {
				return nil, err
			}
			return string(*p), nil
		},
		dest: func() (any, func() error) {
			return &raw, func() error {
				s, err := parse(raw.String)
				if err != nil {
					return err
				}
				*p = s
				return nil
			}
		},
	}
}
