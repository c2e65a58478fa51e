package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/sumin-dev/Magpie/app/models"
	"github.com/sumin-dev/Magpie/internal/pkg/cache"
	"github.com/sumin-dev/Magpie/internal/pkg/database"
)

const (
	CacheKeyIssuesTotal = "statistics:issues:total"
	CacheKeyIssuesDaily = "statistics:issues:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers       = "statistics:users:total"
	CacheExpiration     = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the landing page
type StatisticsData struct {
	TodayIssues int
	TotalUsers  int
	TotalIssues int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached values are due for a refresh
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached statistics when they are stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Failed to update statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalIssues int64
	if err := db.Model(&models.Magazine{}).Where("published = ?", true).Count(&totalIssues).Error; err != nil {
		log.Printf("Error counting total issues: %v", err)
		return err
	}

	var todayIssues int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Magazine{}).Where("published = ? AND created_at BETWEEN ? AND ?", true, todayStart, todayEnd).Count(&todayIssues).Error; err != nil {
		log.Printf("Error counting today's issues: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyIssuesTotal, strconv.FormatInt(totalIssues, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total issues: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyIssuesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayIssues, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's issues: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// GetTotalIssues returns the number of published issues from cache or database
func GetTotalIssues() int {
	val, err := cache.Get(CacheKeyIssuesTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Magazine{}).Where("published = ?", true).Count(&count).Error; err != nil {
			log.Printf("Error counting total issues: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyIssuesTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total issues: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayIssues returns the number of issues published today from cache or database
func GetTodayIssues() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyIssuesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Magazine{}).Where("published = ? AND created_at BETWEEN ? AND ?", true, todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's issues: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's issues: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsers)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsers, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayIssues: GetTodayIssues(),
		TotalUsers:  GetTotalUsers(),
		TotalIssues: GetTotalIssues(),
	}
}
