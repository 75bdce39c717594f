package database

import (
	"errors"
	"fmt"

	"github.com/anjiri1684/social_messaging/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const demoPassword = "password123"

var demoUsers = []models.User{
	{Username: "alice", FullName: "Alice Wanjiru", Email: "alice@example.com"},
	{Username: "bob", FullName: "Bob Otieno", Email: "bob@example.com"},
	{Username: "carol", FullName: "Carol Mutua", Email: "carol@example.com"},
}

// SeedDemoData creates three users, an accepted alice/bob friendship and a group
// containing all three. It does nothing if alice already exists.
func SeedDemoData(db *gorm.DB, log *logrus.Entry) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", demoUsers[0].Username).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for demo users: %w", err)
	}
	if count > 0 {
		log.Info("Demo data already exists.")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		users := make([]*models.User, 0, len(demoUsers))
		for _, u := range demoUsers {
			user := u
			user.Password = string(hashed)
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			users = append(users, &user)
		}
		if len(users) < 2 {
			return errors.New("not enough demo users")
		}

		alice, bob := users[0], users[1]
		for _, edge := range [][2]*models.User{{alice, bob}, {bob, alice}} {
			f := models.Friendship{UserID: edge[0].ID, FriendID: edge[1].ID, Status: models.FriendshipAccepted}
			if err := tx.Create(&f).Error; err != nil {
				return err
			}
		}

		group := models.Group{Name: "study-group", Description: "Demo group", CreatedBy: alice.ID, Members: users}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}

		log.WithField("users", len(users)).Info("Demo data seeded")
		return nil
	})
}
