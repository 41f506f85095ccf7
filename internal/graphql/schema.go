package graphql

// Schema is the GraphQL schema served at /graphql.
const Schema = `
schema {
  query: Query
  mutation: Mutation
}

type Query {
  health: [CarrierHealth!]!
  carriers: [Carrier!]!
  serviceability(pincode: String!, serviceTier: String, carriers: [String!]): ServiceabilityResult!
  quotes(input: QuoteInput!): QuoteResult!
  track(carrier: String!, externalId: String!): TrackingTimeline!
}

type Mutation {
  bookShipment(carrier: String!, input: BookingInput!): BookingResult!
  cancelShipment(carrier: String!, externalId: String!): CancelResult!
}

enum PaymentType {
  PREPAID
  COD
}

input LocationInput {
  pincode: String
  city: String!
  state: String!
  region: String
}

input DimensionsInput {
  length: Float!
  width: Float!
  height: Float!
}

input QuoteInput {
  carriers: [String!]
  serviceTier: String
  origin: LocationInput!
  destination: LocationInput!
  weight: Float!
  dimensions: DimensionsInput
  paymentType: PaymentType
  collectibleAmount: Float
  includeRto: Boolean
}

input AddressInput {
  name: String!
  company: String
  line1: String!
  line2: String
  city: String!
  state: String!
  pincode: String!
  country: String
  phone: String!
  email: String
}

input ParcelInput {
  weight: Float!
  dimensions: DimensionsInput
  declaredValue: Float
  description: String
  quantity: Int
}

input BookingInput {
  serviceTier: String
  reference: String
  pickup: AddressInput!
  consignee: AddressInput!
  returnAddress: AddressInput
  parcel: ParcelInput!
  paymentType: PaymentType!
  collectibleAmount: Float
  invoiceValue: Float
}

type CarrierError {
  carrier: String!
  kind: String!
  code: String
  message: String!
}

type Carrier {
  name: String!
  liveRating: Boolean!
  waybillFetch: Boolean!
  health: String!
}

type CarrierHealth {
  carrier: String!
  state: String!
  lastProbe: String
  latencyMs: Int
  lastError: String
  requests: Int!
}

type Serviceability {
  carrier: String!
  pincode: String!
  serviceable: Boolean!
  codAvailable: Boolean!
  prepaidAvailable: Boolean!
}

type ServiceabilityResult {
  results: [Serviceability!]!
  errors: [CarrierError!]!
}

type Quote {
  carrier: String!
  serviceTier: String
  zone: String!
  actualWeight: Float!
  volumetricWeight: Float!
  chargeableWeight: Float!
  multiplier: Int!
  base: Float!
  additional: Float!
  shipping: Float!
  cod: Float!
  rto: Float!
  gst: Float!
  total: Float!
  live: Boolean!
}

type QuoteResult {
  zone: String!
  quotes: [Quote!]!
  errors: [CarrierError!]!
}

type TrackingEvent {
  timestamp: String!
  status: String!
  location: String
  description: String
  rawStatus: String
}

type TrackingTimeline {
  carrier: String!
  externalId: String!
  status: String!
  fetchedAt: String!
  events: [TrackingEvent!]!
}

type BookingResult {
  carrier: String!
  externalId: String!
  waybill: String
  status: String!
  labelUrl: String
}

type CancelResult {
  carrier: String!
  externalId: String!
  cancelled: Boolean!
  message: String
}
`
