package metrics

import (
	"database/sql"

	"codeberg.org/mutker/nvoltctl/internal/errors"
)

func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS control_trace (
            timestamp INTEGER NOT NULL,
            device INTEGER NOT NULL,
            temperature REAL,
            setpoint REAL,
            voltage INTEGER,
            emitted INTEGER,
            PRIMARY KEY (timestamp, device)
        )
    `)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
