// Package messages builds the human-readable title/body pairs for
// event-driven notifications.
package messages

import "fmt"

// ─── Task builders ───────────────────────────────────────────────────────────

func TaskAssigned(taskName string, points int) (string, string) {
	return TaskAssignedTitle, fmt.Sprintf(TaskAssignedBody, taskName, points)
}

func TaskCompleted(childName, taskName string) (string, string) {
	return TaskCompletedTitle, fmt.Sprintf(TaskCompletedBody, childName, taskName)
}

func TaskExpired(taskName string) (string, string) {
	return TaskExpiredTitle, fmt.Sprintf(TaskExpiredBody, taskName)
}

// ─── Reward builders ─────────────────────────────────────────────────────────

func RewardGranted(rewardName string) (string, string) {
	return RewardGrantedTitle, fmt.Sprintf(RewardGrantedBody, rewardName)
}

func PointsEarned(points int, gameName string) (string, string) {
	return PointsEarnedTitle, fmt.Sprintf(PointsEarnedBody, points, gameName)
}

// ─── Payment builders ────────────────────────────────────────────────────────

func OrderPaid(orderRef, amount string) (string, string) {
	return OrderPaidTitle, fmt.Sprintf(OrderPaidBody, orderRef, amount)
}

func PaymentFailed(orderRef string) (string, string) {
	return PaymentFailedTitle, fmt.Sprintf(PaymentFailedBody, orderRef)
}
