package service

import (
	"fmt"

	"github.com/lk2023060901/shardbazaar/app/bazaar/internal/model"
)

func collectibleLabel(c *model.Collectible) string {
	if c == nil {
		return "unknown collectible"
	}
	return fmt.Sprintf("%s [%s]", c.Name, c.Tier)
}

func spawnSummary(sp *model.ActiveSpawn) string {
	return fmt.Sprintf("%s appeared (code %s)", collectibleLabel(&sp.Collectible), sp.Code)
}

func spawnAnnouncement(sp *model.ActiveSpawn) string {
	return fmt.Sprintf("A wild %s appeared! Guess its name to catch it.", collectibleLabel(&sp.Collectible))
}

func claimNotice(playerName string, c *model.Collectible) string {
	return fmt.Sprintf("%s caught %s!", playerName, collectibleLabel(c))
}

func buyerNotice(res *PurchaseResult) string {
	return fmt.Sprintf("You bought %s from %s for %d shards. Balance: %d.",
		collectibleLabel(res.Collectible), res.SellerName, res.Price, res.BuyerBalance)
}

func sellerNotice(res *PurchaseResult) string {
	return fmt.Sprintf("%s bought your %s for %d shards.",
		res.BuyerName, collectibleLabel(res.Collectible), res.Price)
}

func expiryNotice(kind string, c *model.Collectible, code string) string {
	return fmt.Sprintf("Your %s listing %s for %s expired and was returned to your collection.",
		kind, code, collectibleLabel(c))
}
