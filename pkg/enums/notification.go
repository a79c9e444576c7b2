package enums

import "fmt"

// NotificationType classifies rows in the notifications table.
type NotificationType string

const (
	NotificationTypeOrderAlert   NotificationType = "order_alert"
	NotificationTypeOrderUpdate  NotificationType = "order_update"
	NotificationTypePoints       NotificationType = "points"
	NotificationTypeVoucher      NotificationType = "voucher"
	NotificationTypeAnnouncement NotificationType = "announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderAlert,
	NotificationTypeOrderUpdate,
	NotificationTypePoints,
	NotificationTypeVoucher,
	NotificationTypeAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
