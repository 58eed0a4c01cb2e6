package reputation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/sharehunt/shares-sniper/internal/reputation"
	"github.com/sharehunt/shares-sniper/internal/testutil"
)

const testToken = "0x1234567890123456789012345678901234567890"

func TestFetchRoomResolvesHandle(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	defer api.Close()
	api.SetRoom(testToken, "creator_handle")

	client := reputation.NewRoomClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	room, err := client.FetchRoom(context.Background(), testToken)
	if err != nil {
		t.Fatalf("fetch room: %v", err)
	}
	if room == nil || room.CreatorHandle != "creator_handle" {
		t.Errorf("unexpected room: %+v", room)
	}
}

func TestFetchRoomUnknownTokenIsNotAnError(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	defer api.Close()

	client := reputation.NewRoomClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	room, err := client.FetchRoom(context.Background(), testToken)
	if err != nil {
		t.Fatalf("a 404 must not be an error, got %v", err)
	}
	if room != nil {
		t.Errorf("expected nil room, got %+v", room)
	}
}

func TestFetchRoomEmptyHandleMeansUnresolved(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	defer api.Close()
	api.SetRoom(testToken, "")

	client := reputation.NewRoomClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	room, err := client.FetchRoom(context.Background(), testToken)
	if err != nil {
		t.Fatalf("fetch room: %v", err)
	}
	if room != nil {
		t.Errorf("a room without a handle must resolve to nil, got %+v", room)
	}
}

func TestFetchRoomServerErrorIsUnavailable(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	defer api.Close()
	api.SetRoom(testToken, "creator_handle")
	api.FailRooms = true

	client := reputation.NewRoomClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	_, err := client.FetchRoom(context.Background(), testToken)
	if !errors.Is(err, reputation.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFetchProfileReturnsFollowersAndVerification(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	defer api.Close()
	api.SetProfile("creator_handle", 25000, true)

	client := reputation.NewProfileClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	profile, err := client.FetchProfile(context.Background(), "creator_handle")
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if profile.FollowerCount != 25000 || !profile.IsVerified {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestFetchProfileFailureIsUnavailable(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	defer api.Close()
	api.FailProfiles = true

	client := reputation.NewProfileClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	_, err := client.FetchProfile(context.Background(), "creator_handle")
	if !errors.Is(err, reputation.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFetchRoomUnreachableServerIsUnavailable(t *testing.T) {
	api := testutil.NewMockReputationAPI()
	api.Close() // connection refused from here on

	client := reputation.NewRoomClient(api.URL, time.Second, rate.NewLimiter(rate.Inf, 0))

	_, err := client.FetchRoom(context.Background(), testToken)
	if !errors.Is(err, reputation.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
