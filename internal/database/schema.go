package database

import (
	"context"
	"database/sql"
	"fmt"
)

// tables lists the DDL in dependency order.  DropAll walks it backwards.
var tables = []struct {
	name string
	ddl  string
}{
	{"role", `CREATE TABLE IF NOT EXISTS role (
		role_name        VARCHAR(64) NOT NULL PRIMARY KEY,
		role_permissions INT UNSIGNED NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"user", "CREATE TABLE IF NOT EXISTS `user` (" + `
		user_id       BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_email    VARCHAR(64)  NOT NULL UNIQUE,
		user_name     VARCHAR(64)  NOT NULL,
		user_password VARCHAR(255) NOT NULL,
		user_tel      VARCHAR(32)  NULL,
		user_sex      VARCHAR(32)  NULL,
		user_address  VARCHAR(128) NULL,
		user_position VARCHAR(128) NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"user_role", `CREATE TABLE IF NOT EXISTS user_role (
		user_id   BIGINT UNSIGNED NOT NULL,
		role_name VARCHAR(64) NOT NULL,
		PRIMARY KEY (user_id, role_name),
		FOREIGN KEY (user_id) REFERENCES ` + "`user`" + `(user_id),
		FOREIGN KEY (role_name) REFERENCES role(role_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"region", `CREATE TABLE IF NOT EXISTS region (
		region_id   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		region_name VARCHAR(64) NOT NULL UNIQUE,
		region_lon  DOUBLE NOT NULL,
		region_lat  DOUBLE NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"crop", `CREATE TABLE IF NOT EXISTS crop (
		crop_id   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		crop_name VARCHAR(32) NOT NULL UNIQUE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"field", `CREATE TABLE IF NOT EXISTS field (
		field_id   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		region_id  BIGINT UNSIGNED NULL,
		crop_id    BIGINT UNSIGNED NULL,
		field_area DOUBLE NOT NULL,
		FOREIGN KEY (region_id) REFERENCES region(region_id),
		FOREIGN KEY (crop_id) REFERENCES crop(crop_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"precinct", `CREATE TABLE IF NOT EXISTS precinct (
		precinct_id   BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		region_id     BIGINT UNSIGNED NULL,
		user_id       BIGINT UNSIGNED NULL UNIQUE,
		precinct_name VARCHAR(64) NOT NULL UNIQUE,
		precinct_area DOUBLE NOT NULL,
		FOREIGN KEY (region_id) REFERENCES region(region_id),
		FOREIGN KEY (user_id) REFERENCES ` + "`user`" + `(user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"device", `CREATE TABLE IF NOT EXISTS device (
		device_id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		region_id               BIGINT UNSIGNED NULL,
		device_instance         VARCHAR(64) NOT NULL,
		device_type             VARCHAR(64) NOT NULL,
		device_lon              DOUBLE NOT NULL,
		device_lat              DOUBLE NOT NULL,
		device_abnormality_rate DOUBLE NULL,
		FOREIGN KEY (region_id) REFERENCES region(region_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"weather", `CREATE TABLE IF NOT EXISTS weather (
		region_id                    BIGINT UNSIGNED NOT NULL,
		weather_date                 DATETIME NOT NULL,
		weather_temperature          DOUBLE NULL,
		weather_humidity             DOUBLE NULL,
		weather_illumination         DOUBLE NULL,
		weather_wind_speed           DOUBLE NULL,
		weather_wind_direction       DOUBLE NULL,
		weather_atmospheric_pressure DOUBLE NULL,
		weather_precipitation        DOUBLE NULL,
		weather_CO2                  DOUBLE NULL,
		weather_N                    DOUBLE NULL,
		weather_P                    DOUBLE NULL,
		weather_K                    DOUBLE NULL,
		PRIMARY KEY (region_id, weather_date),
		FOREIGN KEY (region_id) REFERENCES region(region_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"soil", `CREATE TABLE IF NOT EXISTS soil (
		device_id         BIGINT UNSIGNED NOT NULL,
		soil_date         DATETIME NOT NULL,
		soil_temperature  DOUBLE NULL,
		soil_water        DOUBLE NULL,
		soil_conductivity DOUBLE NULL,
		soil_PH           DOUBLE NULL,
		soil_salt         DOUBLE NULL,
		PRIMARY KEY (device_id, soil_date),
		FOREIGN KEY (device_id) REFERENCES device(device_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"service", `CREATE TABLE IF NOT EXISTS service (
		region_id          BIGINT UNSIGNED NOT NULL,
		service_date       DATE NOT NULL,
		service_id         VARCHAR(256) NOT NULL UNIQUE,
		year_terrain_url   VARCHAR(256) NULL,
		year_hydrology_url VARCHAR(256) NULL,
		day_feature_url    VARCHAR(256) NULL,
		day_growth_url     VARCHAR(256) NULL,
		PRIMARY KEY (region_id, service_date),
		FOREIGN KEY (region_id) REFERENCES region(region_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// CreateAll creates every table that does not exist yet.
func CreateAll(ctx context.Context, db *sql.DB) error {
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}
	return nil
}

// DropAll drops every table in reverse dependency order.
func DropAll(ctx context.Context, db *sql.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS `"+tables[i].name+"`"); err != nil {
			return fmt.Errorf("drop %s: %w", tables[i].name, err)
		}
	}
	return nil
}

// Tables returns the table names in creation order.
func Tables() []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.name
	}
	return out
}
