package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db *sql.DB
}

type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailure JobStatus = "failure"
	JobCached  JobStatus = "cached"
)

type Job struct {
	ID            string
	InputPath     string
	OutputPath    string
	Status        JobStatus
	InputSamples  int64
	OutputSamples int64
	Packets       int
	Duration      time.Duration
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time // zero while running
}
