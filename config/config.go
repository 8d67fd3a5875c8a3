// Package config handles pre-database configuration, such as the location of
// the database.  Used by whatever embeds the library and by knockoutadmin.
//
// TODO: I have never seen a viper setup that I liked.
package config

import (
	"log"
	"os"

	"github.com/spf13/viper"
)

// Viper-based config loader
func Init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName(".knockout")
	viper.AddConfigPath(home)
	viper.AutomaticEnv()
	viper.BindEnv("db_url", "KNOCKOUT_DB_URL")
	viper.BindEnv("cache_size", "KNOCKOUT_CACHE_SIZE")
	viper.BindEnv("points_per_round", "KNOCKOUT_POINTS_PER_ROUND")
	viper.SetDefault("db_url", "")
	viper.SetDefault("cache_size", 128)
	viper.SetDefault("points_per_round", 100)
	err = viper.ReadInConfig() // ignore error if config file missing
	if err != nil {
		log.Printf("viper can't read config file: %v", err)
	}
}

func DBURL() string {
	return viper.GetString("db_url")
}

// CacheSize is the competition LRU cache capacity.
func CacheSize() int {
	return viper.GetInt("cache_size")
}

// PointsPerRound is the default per-round point budget for new
// competitions that don't specify one.
func PointsPerRound() int64 {
	return viper.GetInt64("points_per_round")
}
