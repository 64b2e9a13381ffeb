package main

import (
	"context"
	"log"

	"github.com/s-a-b-i/SEOLINKBUILDING/internal/config"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/datamodels/website"
	"github.com/s-a-b-i/SEOLINKBUILDING/internal/repository/mysql"
)

// 向数据库写入一批演示用的刊例数据，方便本地联调
func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := mysql.Init(&cfg.MySQL)
	repo := mysql.NewWebsiteRepository(db)
	ctx := context.Background()

	seeds := []*website.Website{
		{
			OwnerID:    1,
			MediaName:  "Tech Daily",
			WebDomain:  "techdaily.example.com",
			MediaType:  "blog",
			Category:   "Technology",
			Language:   "en",
			DA:         55,
			AScore:     48,
			Price:      12000, // 120 欧
			Commission: 1200,
			GoogleNews: true,
			Status:     website.StatusApproved,
		},
		{
			OwnerID:         1,
			MediaName:       "Finanza Oggi",
			WebDomain:       "finanzaoggi.example.it",
			MediaType:       "news",
			Category:        "Finance",
			Language:        "it",
			DA:              62,
			AScore:          57,
			Price:           25000,
			Commission:      2500,
			SensitiveTopics: "Trading",
			Status:          website.StatusApproved,
		},
		{
			OwnerID:         2,
			MediaName:       "Wellness Mag",
			WebDomain:       "wellnessmag.example.com",
			MediaType:       "magazine",
			Category:        "Health",
			Language:        "en",
			DA:              38,
			AScore:          31,
			Price:           8000,
			Commission:      800,
			SensitiveTopics: "CBD",
			Status:          website.StatusPending,
		},
	}

	for _, w := range seeds {
		if err := repo.Create(ctx, w); err != nil {
			log.Printf("seed %s failed: %v", w.WebDomain, err)
			continue
		}
		log.Printf("seeded website %s (id=%d)", w.WebDomain, w.ID)
	}
}
