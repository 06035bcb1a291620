package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (Subscription{}).TableName() != "subscriptions" {
		t.Fatalf("Subscription.TableName() = %q", (Subscription{}).TableName())
	}
	if (DeliveredEvent{}).TableName() != "delivered_events" {
		t.Fatalf("DeliveredEvent.TableName() = %q", (DeliveredEvent{}).TableName())
	}
}

func TestSubscription_PrimaryKeyReplaces(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Subscription{}, &DeliveredEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable(&Subscription{}) || !m.HasTable(&DeliveredEvent{}) {
		t.Fatalf("expected tables to exist")
	}

	first := Subscription{Principal: "U1", OrderReference: "A", ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := Subscription{Principal: "U1", OrderReference: "B", ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected primary key violation on second insert")
	}

	var got Subscription
	if err := db.First(&got, "principal = ?", "U1").Error; err != nil {
		t.Fatalf("first: %v", err)
	}
	rec := got.Record()
	if rec.Principal != "U1" || rec.OrderReference != "A" {
		t.Fatalf("unexpected record %+v", rec)
	}
}
