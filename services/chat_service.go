// Package services exposes the relay core to the transport layer as a
// thin application seam, keeping the orchestrator out of handler code.
package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/runtime"
)

type IChatService interface {
	CreateRoom(p domain.Participant, sink contract.EventSink) (domain.RoomID, error)
	JoinRoom(roomID domain.RoomID, p domain.Participant, sink contract.EventSink) error
	PostMessage(cmd domain.PostMessageCommand) error
	SetTyping(cmd domain.SetTypingCommand) error
	Leave(roomID domain.RoomID, clientID domain.ClientID) error
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) CreateRoom(p domain.Participant, sink contract.EventSink) (domain.RoomID, error) {
	return s.orchestrator.CreateRoom(p, sink)
}

func (s *ChatService) JoinRoom(roomID domain.RoomID, p domain.Participant, sink contract.EventSink) error {
	return s.orchestrator.JoinRoom(roomID, p, sink)
}

func (s *ChatService) PostMessage(cmd domain.PostMessageCommand) error {
	return s.orchestrator.Dispatch(cmd)
}

func (s *ChatService) SetTyping(cmd domain.SetTypingCommand) error {
	return s.orchestrator.Dispatch(cmd)
}

func (s *ChatService) Leave(roomID domain.RoomID, clientID domain.ClientID) error {
	return s.orchestrator.Dispatch(domain.LeaveCommand{RoomID: roomID, SenderID: clientID})
}
