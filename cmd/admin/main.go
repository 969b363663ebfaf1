package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/internal/monitoring"
	"sentiment-dashboard/internal/utils"
	"sentiment-dashboard/pkg/types"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/config.yaml", "Configuration file path")
		migrate     = flag.Bool("migrate", false, "Apply database migrations")
		seed        = flag.Bool("seed", false, "Insert demo pages, posts, comments and sentiments")
		clearData   = flag.Bool("clear", false, "Delete all scraped content and grants")
		createAdmin = flag.String("create-admin", "", "Create an admin login as email:username:password")
		grant       = flag.String("grant", "", "Grant post access as authUserID:postID")
		report      = flag.Bool("report", false, "Generate and display a health report")
		alerts      = flag.Bool("alerts", false, "Check and display alerts")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ran := false

	if *migrate {
		ran = true
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("Migrations applied")
	}

	if *clearData {
		ran = true
		if err := db.ClearData(ctx); err != nil {
			logger.Fatalf("Failed to clear data: %v", err)
		}
		fmt.Println("Cleared scraped content and access grants")
	}

	if *seed {
		ran = true
		summary, err := db.SeedDemoData(ctx)
		if err != nil {
			logger.Fatalf("Failed to seed data: %v", err)
		}
		fmt.Printf("Seeded %d pages, %d posts, %d users, %d comments, %d sentiments, %d reactions\n",
			summary.Pages, summary.Posts, summary.Users, summary.Comments, summary.Sentiments, summary.Reactions)
	}

	if *createAdmin != "" {
		ran = true
		parts := strings.SplitN(*createAdmin, ":", 3)
		if len(parts) != 3 {
			logger.Fatal("-create-admin expects email:username:password")
		}
		hash, err := auth.HashPassword(parts[2])
		if err != nil {
			logger.Fatalf("Invalid password: %v", err)
		}
		user, err := db.CreateAuthUser(ctx, parts[1], parts[0], hash, types.RoleAdmin)
		if err != nil {
			logger.Fatalf("Failed to create admin: %v", err)
		}
		fmt.Printf("Created admin %s (%s)\n", user.Email, user.ID)
	}

	if *grant != "" {
		ran = true
		userID, postID, ok := strings.Cut(*grant, ":")
		if !ok {
			logger.Fatal("-grant expects authUserID:postID")
		}
		if err := db.GrantAccess(ctx, userID, postID, ""); err != nil {
			logger.Fatalf("Failed to grant access: %v", err)
		}
		fmt.Printf("Granted %s access to post %s\n", userID, postID)
	}

	monitor := monitoring.NewMonitor(logger, db, nil)

	if *report {
		fmt.Println(monitor.GenerateReport(ctx))
		return
	}

	if *alerts {
		alertManager := monitoring.NewAlertManager(monitor, logger)
		active := alertManager.CheckAlerts(ctx)
		if len(active) == 0 {
			fmt.Println("No alerts - system is healthy")
			return
		}
		fmt.Println("Active alerts:")
		for _, alert := range active {
			fmt.Printf("  - %s\n", alert)
		}
		alertManager.SendAlerts(active)
		os.Exit(1)
	}

	if !ran {
		health := monitor.HealthStatus(ctx)
		fmt.Println("Sentiment Dashboard Status:")
		fmt.Printf("- Status: %s\n", health.Status)
		for name, state := range health.Checks {
			fmt.Printf("- %s: %s\n", name, state)
		}
	}
}
