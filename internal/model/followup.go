package model

// FollowUpStatusOpen is the status new follow_ups rows are created with.
// One row exists per (person, attendance); the general follow-up workflow
// owns the row once it has been persisted.
const FollowUpStatusOpen = "OPEN"
